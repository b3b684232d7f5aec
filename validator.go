package crewkit

import (
	"context"
)

// Transition is a validated role change, carrying the records read during
// validation so the caller does not have to resolve them again.
type Transition struct {
	Actor   Member
	Target  Member
	NewRole Role
}

// FromRole returns the target's role at validation time.
func (t *Transition) FromRole() Role {
	return t.Target.Role
}

// TransitionValidator decides whether an actor may move a target to a new role.
// It never writes.
type TransitionValidator struct {
	resolver IdentityResolver
}

// NewTransitionValidator creates a validator that reads members through resolver.
func NewTransitionValidator(resolver IdentityResolver) *TransitionValidator {
	return &TransitionValidator{resolver: resolver}
}

// Validate runs the transition rules in order and stops at the first failure:
// both members resolved and live, actor holds users:manage_roles, no self
// change, admin unconditional, then demote/promote sets and level ceiling.
func (v *TransitionValidator) Validate(ctx context.Context, actorID, targetID, teamID string, newRole Role) (*Transition, error) {
	if !newRole.IsValid() {
		return nil, invalidArgument("unknown role %q", newRole)
	}

	actor, err := resolveLive(ctx, v.resolver, actorID, teamID)
	if err != nil {
		return nil, err
	}
	target, err := resolveLive(ctx, v.resolver, targetID, teamID)
	if err != nil {
		return nil, err
	}

	if !HasPermission(actor.Role, PermUsersManageRoles) {
		return nil, NewError(ErrInsufficientPermissions, "role management requires "+PermUsersManageRoles.String()).
			WithTeam(teamID).
			WithActor(actorID).
			WithRole(actor.Role)
	}

	if actorID == targetID {
		return nil, NewError(ErrSelfChangeDenied, "members cannot change their own role").
			WithTeam(teamID).
			WithActor(actorID)
	}

	t := &Transition{Actor: *actor, Target: *target, NewRole: newRole}
	if actor.Role == RoleAdmin {
		return t, nil
	}

	if err := checkRestrictedTransition(actor.Role, target.Role, newRole); err != nil {
		return nil, err.WithTeam(teamID).WithActor(actorID).WithUser(targetID)
	}
	return t, nil
}

// checkRestrictedTransition applies the non-admin rules and returns the first violation.
func checkRestrictedTransition(actorRole, fromRole, toRole Role) *Error {
	def := Definition(actorRole)
	if !def.AllowsDemotionFrom(fromRole) {
		return NewError(ErrCannotDemoteRole, "cannot change a member holding "+fromRole.String()).
			WithRole(fromRole)
	}
	if !def.AllowsPromotionTo(toRole) {
		return NewError(ErrCannotPromoteRole, "cannot assign "+toRole.String()).
			WithRole(toRole)
	}
	if toRole.Level() >= actorRole.Level() {
		return NewError(ErrCannotPromoteToHigherRole, "cannot assign "+toRole.String()).
			WithRole(toRole)
	}
	return nil
}

// TransitionCheck is the catalogue-only evaluation of a role transition.
type TransitionCheck struct {
	CanTransition bool                      `json:"canTransition"`
	Reasons       []string                  `json:"reasons"`
	Roles         map[string]RoleDefinition `json:"roles"`
}

// CheckTransition evaluates whether an actor holding actorRole could move a
// member from fromRole to toRole, collecting every reason it could not.
// Unlike Validate it looks at no member records.
func CheckTransition(fromRole, toRole, actorRole Role) (*TransitionCheck, error) {
	for _, r := range []Role{fromRole, toRole, actorRole} {
		if !r.IsValid() {
			return nil, invalidArgument("unknown role %q", r)
		}
	}

	check := &TransitionCheck{
		Reasons: []string{},
		Roles: map[string]RoleDefinition{
			"from":  Definition(fromRole),
			"to":    Definition(toRole),
			"actor": Definition(actorRole),
		},
	}

	if !HasPermission(actorRole, PermUsersManageRoles) {
		check.Reasons = append(check.Reasons, "Actor role cannot manage roles")
	}
	if fromRole == toRole {
		check.Reasons = append(check.Reasons, "Role is unchanged")
	}
	if actorRole != RoleAdmin {
		def := Definition(actorRole)
		if !def.AllowsDemotionFrom(fromRole) {
			check.Reasons = append(check.Reasons, "Actor cannot change members holding "+fromRole.String())
		}
		if !def.AllowsPromotionTo(toRole) {
			check.Reasons = append(check.Reasons, "Actor cannot assign "+toRole.String())
		}
		if toRole.Level() >= actorRole.Level() {
			check.Reasons = append(check.Reasons, "Target role is equal to or higher than the actor's role")
		}
	}

	check.CanTransition = len(check.Reasons) == 0
	return check, nil
}
