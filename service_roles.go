package crewkit

import (
	"context"

	"go.uber.org/zap"
)

// ============================================================================
// ROLE CHANGE OPERATIONS
// ============================================================================

// ChangeRoleInput is the input of ChangeUserRole and RequestRoleChange.
type ChangeRoleInput struct {
	TeamID       string `json:"teamId"`
	TargetUserID string `json:"targetUserId"`
	NewRole      Role   `json:"newRole"`
	Reason       string `json:"reason,omitempty"`
}

// BulkChangeInput is the input of BulkChangeRoles.
type BulkChangeInput struct {
	TeamID  string   `json:"teamId"`
	UserIDs []string `json:"userIds"`
	NewRole Role     `json:"newRole"`
	Reason  string   `json:"reason,omitempty"`
}

// ChangeUserRole changes a member's role on behalf of the caller.
//
// Example:
//
//	ctx = crewkit.WithUserID(ctx, adminID)
//	res, err := service.ChangeUserRole(ctx, crewkit.ChangeRoleInput{
//	    TeamID: teamID, TargetUserID: workerID, NewRole: crewkit.RoleManager,
//	})
func (s *Service) ChangeUserRole(ctx context.Context, in ChangeRoleInput) (*RoleChangeResult, error) {
	caller, err := s.caller(ctx, in.TeamID)
	if err != nil {
		return nil, s.fail(ctx, "ChangeUserRole", in.TeamID, err)
	}
	if in.TargetUserID == "" {
		return nil, s.fail(ctx, "ChangeUserRole", in.TeamID, invalidArgument("target user ID is required"))
	}

	res, err := s.coord.ChangeRole(ctx, RoleChangeRequest{
		ActorID:  caller.UserID,
		TargetID: in.TargetUserID,
		TeamID:   in.TeamID,
		NewRole:  in.NewRole,
		Reason:   in.Reason,
	})
	if err != nil {
		return nil, s.fail(ctx, "ChangeUserRole", in.TeamID, err)
	}
	return res, nil
}

// BulkChangeRoles applies one role change to up to MaxBulkTargets members.
// Malformed input fails the call; per-member failures are reported in the
// result items.
func (s *Service) BulkChangeRoles(ctx context.Context, in BulkChangeInput) (*BulkChangeResult, error) {
	caller, err := s.caller(ctx, in.TeamID)
	if err != nil {
		return nil, s.fail(ctx, "BulkChangeRoles", in.TeamID, err)
	}

	res, err := s.coord.BulkChangeRole(ctx, BulkRoleChangeRequest{
		ActorID:   caller.UserID,
		TeamID:    in.TeamID,
		TargetIDs: in.UserIDs,
		NewRole:   in.NewRole,
		Reason:    in.Reason,
	})
	if err != nil {
		return nil, s.fail(ctx, "BulkChangeRoles", in.TeamID, err)
	}
	return res, nil
}

// AssignableRole is one entry of GetAssignableRoles.
type AssignableRole struct {
	Role       Role           `json:"role"`
	Definition RoleDefinition `json:"definition"`
}

// AssignableRolesResult lists the roles the caller may assign.
type AssignableRolesResult struct {
	RequesterRole   Role             `json:"requesterRole"`
	AssignableRoles []AssignableRole `json:"assignableRoles"`
}

// GetAssignableRoles returns the roles the caller may assign in the team,
// highest first. A field worker gets an empty list.
func (s *Service) GetAssignableRoles(ctx context.Context, teamID string) (*AssignableRolesResult, error) {
	caller, err := s.caller(ctx, teamID)
	if err != nil {
		return nil, s.fail(ctx, "GetAssignableRoles", teamID, err)
	}

	out := &AssignableRolesResult{
		RequesterRole:   caller.Role,
		AssignableRoles: []AssignableRole{},
	}
	for _, r := range AssignableRoles(caller.Role) {
		out.AssignableRoles = append(out.AssignableRoles, AssignableRole{
			Role:       r,
			Definition: Definition(r),
		})
	}
	return out, nil
}

// ValidateRoleTransitionInput is the input of ValidateRoleTransition.
type ValidateRoleTransitionInput struct {
	FromRole  string `json:"fromRole"`
	ToRole    string `json:"toRole"`
	ActorRole string `json:"actorRole"`
}

// ValidateRoleTransition answers whether an actor role could move a member
// between two roles, using the catalogue only. It requires an authenticated
// caller but no team membership.
func (s *Service) ValidateRoleTransition(ctx context.Context, in ValidateRoleTransitionInput) (*TransitionCheck, error) {
	if GetUserID(ctx) == "" {
		return nil, s.fail(ctx, "ValidateRoleTransition", "", NewError(ErrUnauthenticated, "no caller identity in context"))
	}

	roles := make([]Role, 0, 3)
	for _, name := range []string{in.FromRole, in.ToRole, in.ActorRole} {
		r, err := ParseRole(name)
		if err != nil {
			return nil, s.fail(ctx, "ValidateRoleTransition", "", err)
		}
		roles = append(roles, r)
	}

	check, err := CheckTransition(roles[0], roles[1], roles[2])
	if err != nil {
		return nil, s.fail(ctx, "ValidateRoleTransition", "", err)
	}
	return check, nil
}

// ============================================================================
// ROLE CHANGE REQUESTS
// ============================================================================

// RoleRequestResult is the outcome of RequestRoleChange.
type RoleRequestResult struct {
	RequestID string         `json:"requestId"`
	Status    WorkflowStatus `json:"status"`
	Message   string         `json:"message"`
}

// RequestRoleChange records a role change request. An admin's request is
// executed immediately and stored completed; anyone else's is stored pending
// until a member with users:manage_roles approves or rejects it.
func (s *Service) RequestRoleChange(ctx context.Context, in ChangeRoleInput) (*RoleRequestResult, error) {
	res, err := s.requestRoleChange(ctx, in)
	if err != nil {
		return nil, s.fail(ctx, "RequestRoleChange", in.TeamID, err)
	}
	return res, nil
}

func (s *Service) requestRoleChange(ctx context.Context, in ChangeRoleInput) (*RoleRequestResult, error) {
	caller, err := s.caller(ctx, in.TeamID)
	if err != nil {
		return nil, err
	}
	if in.TargetUserID == "" {
		return nil, invalidArgument("target user ID is required")
	}
	if !in.NewRole.IsValid() {
		return nil, invalidArgument("unknown role %q", in.NewRole)
	}

	if caller.Role == RoleAdmin {
		change, err := s.coord.ChangeRole(ctx, RoleChangeRequest{
			ActorID:  caller.UserID,
			TargetID: in.TargetUserID,
			TeamID:   in.TeamID,
			NewRole:  in.NewRole,
			Reason:   in.Reason,
		})
		if err != nil {
			return nil, err
		}

		wf, err := s.workflows.Open(ctx, RoleChangeWorkflow{
			TeamID:       in.TeamID,
			RequesterID:  caller.UserID,
			TargetUserID: in.TargetUserID,
			FromRole:     change.OldRole,
			ToRole:       change.NewRole,
			Reason:       in.Reason,
			Status:       WorkflowCompleted,
		})
		if err != nil {
			return nil, err
		}
		return &RoleRequestResult{
			RequestID: wf.RequestID,
			Status:    wf.Status,
			Message:   "Role change applied",
		}, nil
	}

	target, err := resolveLive(ctx, s.resolver, in.TargetUserID, in.TeamID)
	if err != nil {
		return nil, err
	}
	if target.Role == in.NewRole {
		return nil, invalidArgument("user already has role %s", in.NewRole)
	}

	wf, err := s.workflows.Open(ctx, RoleChangeWorkflow{
		TeamID:       in.TeamID,
		RequesterID:  caller.UserID,
		TargetUserID: target.UserID,
		FromRole:     target.Role,
		ToRole:       in.NewRole,
		Reason:       in.Reason,
		Status:       WorkflowPending,
	})
	if err != nil {
		return nil, err
	}
	return &RoleRequestResult{
		RequestID: wf.RequestID,
		Status:    wf.Status,
		Message:   "Role change request submitted for approval",
	}, nil
}

// ListRoleChangeRequests returns the team's requests, newest first,
// optionally filtered by status. Requires users:manage_roles.
func (s *Service) ListRoleChangeRequests(ctx context.Context, teamID string, status WorkflowStatus) ([]RoleChangeWorkflow, error) {
	if _, err := s.authorize(ctx, teamID, PermUsersManageRoles); err != nil {
		return nil, s.fail(ctx, "ListRoleChangeRequests", teamID, err)
	}

	requests, err := s.workflows.List(ctx, teamID, status)
	if err != nil {
		return nil, s.fail(ctx, "ListRoleChangeRequests", teamID, err)
	}
	if requests == nil {
		requests = []RoleChangeWorkflow{}
	}
	return requests, nil
}

// ApproveRoleChange approves a pending request and executes it with the
// caller as actor, so the caller's own transition rules apply. When the
// execution fails the request stays approved and may be approved again to
// retry it.
func (s *Service) ApproveRoleChange(ctx context.Context, teamID, requestID string) (*RoleChangeWorkflow, error) {
	wf, err := s.approveRoleChange(ctx, teamID, requestID)
	if err != nil {
		return nil, s.fail(ctx, "ApproveRoleChange", teamID, err)
	}
	return wf, nil
}

func (s *Service) approveRoleChange(ctx context.Context, teamID, requestID string) (*RoleChangeWorkflow, error) {
	caller, err := s.authorize(ctx, teamID, PermUsersManageRoles)
	if err != nil {
		return nil, err
	}

	wf, err := s.workflows.Get(ctx, teamID, requestID)
	if err != nil {
		return nil, err
	}
	switch wf.Status {
	case WorkflowPending:
		if wf, err = s.workflows.Approve(ctx, teamID, requestID, caller.UserID); err != nil {
			return nil, err
		}
	case WorkflowApproved:
		s.logger.Info("retrying approved role change request",
			append(requestFields(GetAuditContext(ctx), teamID, caller.UserID),
				zap.String("request_id", requestID),
			)...,
		)
	default:
		return nil, NewError(ErrInvalidWorkflowTransition, string(wf.Status)+" -> "+string(WorkflowApproved)).
			WithTeam(teamID)
	}

	if _, err := s.coord.ChangeRole(ctx, RoleChangeRequest{
		ActorID:  caller.UserID,
		TargetID: wf.TargetUserID,
		TeamID:   teamID,
		NewRole:  wf.ToRole,
		Reason:   wf.Reason,
		Metadata: map[string]any{"requestId": wf.RequestID},
	}); err != nil {
		return nil, err
	}

	return s.workflows.Complete(ctx, teamID, requestID)
}

// RejectRoleChange rejects a pending request. Requires users:manage_roles.
func (s *Service) RejectRoleChange(ctx context.Context, teamID, requestID, reason string) (*RoleChangeWorkflow, error) {
	caller, err := s.authorize(ctx, teamID, PermUsersManageRoles)
	if err != nil {
		return nil, s.fail(ctx, "RejectRoleChange", teamID, err)
	}

	wf, err := s.workflows.Reject(ctx, teamID, requestID, caller.UserID, reason)
	if err != nil {
		return nil, s.fail(ctx, "RejectRoleChange", teamID, err)
	}
	return wf, nil
}
