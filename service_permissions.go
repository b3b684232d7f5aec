package crewkit

import "context"

// ============================================================================
// PERMISSION QUERIES
// ============================================================================

// UserPermissions is a member's role with everything it grants.
type UserPermissions struct {
	UserID         string         `json:"userId"`
	Role           Role           `json:"role"`
	Permissions    []Permission   `json:"permissions"`
	RoleDefinition RoleDefinition `json:"roleDefinition"`
}

// GetUserPermissions returns the role and permissions of userID, or of the
// caller when userID is empty. Looking at another member requires
// users:view_all.
//
// Example:
//
//	perms, err := service.GetUserPermissions(ctx, teamID, "")
func (s *Service) GetUserPermissions(ctx context.Context, teamID, userID string) (*UserPermissions, error) {
	_, userID, err := s.authorizeUser(ctx, teamID, userID)
	if err != nil {
		return nil, s.fail(ctx, "GetUserPermissions", teamID, err)
	}

	member, err := resolveLive(ctx, s.resolver, userID, teamID)
	if err != nil {
		return nil, s.fail(ctx, "GetUserPermissions", teamID, err)
	}
	return &UserPermissions{
		UserID:         member.UserID,
		Role:           member.Role,
		Permissions:    PermissionsOf(member.Role),
		RoleDefinition: Definition(member.Role),
	}, nil
}

// MemberPermissions is one row of GetTeamPermissions.
type MemberPermissions struct {
	UserID      string       `json:"userId"`
	DisplayName string       `json:"displayName"`
	Email       string       `json:"email"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

// TeamPermissions lists every live member of a team with their permissions.
type TeamPermissions struct {
	TeamID  string              `json:"teamId"`
	Members []MemberPermissions `json:"members"`
}

// GetTeamPermissions returns each non-deleted member with role and
// permissions. Requires users:view_all.
func (s *Service) GetTeamPermissions(ctx context.Context, teamID string) (*TeamPermissions, error) {
	if _, err := s.authorize(ctx, teamID, PermUsersViewAll); err != nil {
		return nil, s.fail(ctx, "GetTeamPermissions", teamID, err)
	}

	members, err := s.members.ListMembers(ctx, teamID)
	if err != nil {
		return nil, s.fail(ctx, "GetTeamPermissions", teamID, err)
	}

	out := &TeamPermissions{TeamID: teamID, Members: []MemberPermissions{}}
	for _, m := range members {
		if m.IsDeleted {
			continue
		}
		out.Members = append(out.Members, MemberPermissions{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Email:       m.Email,
			Role:        m.Role,
			Permissions: PermissionsOf(m.Role),
		})
	}
	return out, nil
}

// PermissionCheck is the answer of CheckPermission.
type PermissionCheck struct {
	HasPermission bool   `json:"hasPermission"`
	Reason        string `json:"reason,omitempty"`
}

// CheckPermission reports whether userID (the caller when empty) holds
// permission in the team. Checking the caller never needs users:view_all;
// checking anyone else does. A deleted member holds no permission.
func (s *Service) CheckPermission(ctx context.Context, teamID, permission, userID string) (*PermissionCheck, error) {
	_, userID, err := s.authorizeUser(ctx, teamID, userID)
	if err != nil {
		return nil, s.fail(ctx, "CheckPermission", teamID, err)
	}

	perm, err := ParsePermission(permission)
	if err != nil {
		return nil, s.fail(ctx, "CheckPermission", teamID, err)
	}

	member, err := s.resolver.Resolve(ctx, userID, teamID)
	if err != nil {
		return nil, s.fail(ctx, "CheckPermission", teamID, err)
	}
	if member.IsDeleted {
		s.metrics.observePermissionCheck(false)
		return &PermissionCheck{Reason: "User has been deleted"}, nil
	}

	granted := HasPermission(member.Role, perm)
	s.metrics.observePermissionCheck(granted)
	if !granted {
		return &PermissionCheck{
			Reason: "Role " + member.Role.String() + " does not grant " + perm.String(),
		}, nil
	}
	return &PermissionCheck{HasPermission: true}, nil
}

// GetChecker returns a Checker for the caller's membership in teamID.
// It can be stored in context for handlers with WithChecker.
func (s *Service) GetChecker(ctx context.Context, teamID string) (*Checker, error) {
	member, err := s.caller(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return NewChecker(*member), nil
}
