package crewkit

import (
	"context"

	"go.uber.org/zap"
)

// MaxBulkTargets is the largest number of targets a bulk change accepts.
const MaxBulkTargets = 50

// RoleChangeRequest describes a single role change.
type RoleChangeRequest struct {
	ActorID  string
	TargetID string
	TeamID   string
	NewRole  Role
	Reason   string

	// Metadata is merged into the audit entry metadata.
	Metadata map[string]any
}

// RoleChangeResult is the outcome of a successful single change.
type RoleChangeResult struct {
	OldRole      Role   `json:"oldRole"`
	NewRole      Role   `json:"newRole"`
	TargetUserID string `json:"targetUserId"`
	ActorID      string `json:"actorId"`
	AuditID      string `json:"auditId,omitempty"`
}

// BulkRoleChangeRequest describes a role change applied to several targets.
type BulkRoleChangeRequest struct {
	ActorID   string
	TeamID    string
	TargetIDs []string
	NewRole   Role
	Reason    string
}

// Coordinator validates, persists and audits role changes.
type Coordinator struct {
	validator *TransitionValidator
	members   MemberStore
	ledger    *AuditLedger
	logger    *zap.Logger
	now       Clock
	metrics   *Metrics
}

// NewCoordinator wires a coordinator from its collaborators.
func NewCoordinator(validator *TransitionValidator, members MemberStore, ledger *AuditLedger, opts ...Option) *Coordinator {
	o := buildOptions(opts)
	return &Coordinator{
		validator: validator,
		members:   members,
		ledger:    ledger,
		logger:    o.logger,
		now:       o.now,
		metrics:   o.metrics,
	}
}

// ChangeRole validates and applies a single role change.
// The role update is committed before the audit append; an audit failure is
// logged by the ledger and does not fail or undo the change.
func (c *Coordinator) ChangeRole(ctx context.Context, req RoleChangeRequest) (*RoleChangeResult, error) {
	result, err := c.changeRole(ctx, req, false)
	c.metrics.observeRoleChange("single", err)
	return result, err
}

func (c *Coordinator) changeRole(ctx context.Context, req RoleChangeRequest, rejectUnchanged bool) (*RoleChangeResult, error) {
	t, err := c.validator.Validate(ctx, req.ActorID, req.TargetID, req.TeamID, req.NewRole)
	if err != nil {
		return nil, err
	}

	if rejectUnchanged && t.FromRole() == t.NewRole {
		return nil, NewError(ErrAlreadyHasRole, "").
			WithTeam(req.TeamID).
			WithUser(req.TargetID).
			WithRole(t.NewRole)
	}

	update := RoleUpdate{
		Role:         t.NewRole,
		LastModified: c.now().UTC(),
		ModifiedBy:   req.ActorID,
	}
	if err := c.members.UpdateMemberRole(ctx, req.TeamID, req.TargetID, update); err != nil {
		return nil, err
	}

	audit := GetAuditContext(ctx)
	c.logger.Info("role changed",
		append(requestFields(audit, req.TeamID, req.ActorID),
			zap.String("target_user_id", req.TargetID),
			zap.String("from_role", t.FromRole().String()),
			zap.String("to_role", t.NewRole.String()),
		)...,
	)

	auditID := c.ledger.Append(ctx, AuditLogEntry{
		Action:            AuditActionRoleChanged,
		ActorID:           t.Actor.UserID,
		ActorDisplayName:  t.Actor.DisplayName,
		TargetUserID:      t.Target.UserID,
		TargetDisplayName: t.Target.DisplayName,
		TeamID:            req.TeamID,
		Details: AuditDetails{
			FromRole: t.FromRole(),
			ToRole:   t.NewRole,
			Reason:   req.Reason,
			Metadata: mergeMetadata(audit.Metadata(), req.Metadata),
		},
	})

	return &RoleChangeResult{
		OldRole:      t.FromRole(),
		NewRole:      t.NewRole,
		TargetUserID: req.TargetID,
		ActorID:      req.ActorID,
		AuditID:      auditID,
	}, nil
}

// BulkChangeRole applies the same role change to every target, one at a time
// in input order. Malformed input is rejected before anything is read or
// written; after that, an item's failure is recorded in its result and the
// loop moves on. The result always has one item per target, in input order.
func (c *Coordinator) BulkChangeRole(ctx context.Context, req BulkRoleChangeRequest) (*BulkChangeResult, error) {
	if err := validateBulkRequest(req); err != nil {
		return nil, err
	}
	c.metrics.observeBulkBatch(len(req.TargetIDs))

	result := &BulkChangeResult{
		Results: make([]BulkChangeItem, 0, len(req.TargetIDs)),
	}
	for _, targetID := range req.TargetIDs {
		item := c.bulkItem(ctx, req, targetID)
		if item.Success {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
		result.Results = append(result.Results, item)
	}
	result.TotalProcessed = len(result.Results)

	c.logger.Info("bulk role change processed",
		append(requestFields(GetAuditContext(ctx), req.TeamID, req.ActorID),
			zap.String("to_role", req.NewRole.String()),
			zap.Int("succeeded", result.SuccessCount),
			zap.Int("failed", result.FailureCount),
		)...,
	)
	return result, nil
}

func (c *Coordinator) bulkItem(ctx context.Context, req BulkRoleChangeRequest, targetID string) BulkChangeItem {
	item := BulkChangeItem{UserID: targetID}

	res, err := c.changeRole(ctx, RoleChangeRequest{
		ActorID:  req.ActorID,
		TargetID: targetID,
		TeamID:   req.TeamID,
		NewRole:  req.NewRole,
		Reason:   req.Reason,
		Metadata: map[string]any{"bulk": true},
	}, true)
	c.metrics.observeRoleChange("bulk", err)

	// Best-effort display name for the result row, whatever the outcome.
	if m, lookupErr := c.members.GetMember(ctx, req.TeamID, targetID); lookupErr == nil {
		item.DisplayName = m.DisplayName
		if err != nil {
			item.FromRole = m.Role
		}
	}

	if err != nil {
		item.Error = Message(err)
		item.err = err
		if Kind(err) == KindInternal {
			c.logger.Error("bulk role change item failed",
				append(requestFields(GetAuditContext(ctx), req.TeamID, req.ActorID),
					zap.String("target_user_id", targetID),
					zap.Error(err),
				)...,
			)
		}
		return item
	}

	item.Success = true
	item.FromRole = res.OldRole
	item.ToRole = res.NewRole
	return item
}

func validateBulkRequest(req BulkRoleChangeRequest) error {
	if req.TeamID == "" {
		return invalidArgument("team ID is required")
	}
	if len(req.TargetIDs) == 0 {
		return invalidArgument("at least one user ID is required")
	}
	if len(req.TargetIDs) > MaxBulkTargets {
		return invalidArgument("at most %d user IDs are allowed per request", MaxBulkTargets)
	}
	if !req.NewRole.IsValid() {
		if req.NewRole == "" {
			return invalidArgument("role is required")
		}
		return invalidArgument("unknown role %q", req.NewRole)
	}
	for _, id := range req.TargetIDs {
		if id == "" {
			return invalidArgument("user IDs cannot be empty")
		}
	}
	return nil
}

func mergeMetadata(base, extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
