package crewkit

import (
	"context"
	"time"
)

// ============================================================================
// AUDIT QUERIES
// ============================================================================

// Role history limits.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// AuditLogQuery selects a page of a team's audit log.
type AuditLogQuery struct {
	Limit        int
	Offset       int
	ActorID      string
	TargetUserID string
	Action       AuditAction
}

// GetAuditLogs returns a page of the team's audit log, newest first.
// Limit defaults to DefaultAuditLimit and is capped at MaxAuditLimit.
// Requires audit:view.
func (s *Service) GetAuditLogs(ctx context.Context, teamID string, q AuditLogQuery) (*AuditPage, error) {
	if _, err := s.authorize(ctx, teamID, PermAuditView); err != nil {
		return nil, s.fail(ctx, "GetAuditLogs", teamID, err)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, s.fail(ctx, "GetAuditLogs", teamID, invalidArgument("limit and offset cannot be negative"))
	}
	if q.Action != "" && !q.Action.IsValid() {
		return nil, s.fail(ctx, "GetAuditLogs", teamID, invalidArgument("unknown action %q", q.Action))
	}

	limit := q.Limit
	if limit == 0 {
		limit = DefaultAuditLimit
	}
	filter := NewAuditLogFilter().
		WithActor(q.ActorID).
		WithTargetUser(q.TargetUserID).
		WithAction(q.Action).
		WithPagination(limit, q.Offset)

	page, err := s.ledger.Query(ctx, teamID, filter)
	if err != nil {
		return nil, s.fail(ctx, "GetAuditLogs", teamID, err)
	}
	return page, nil
}

// RoleHistoryEntry is one role change of a member.
type RoleHistoryEntry struct {
	ID            string    `json:"id"`
	FromRole      Role      `json:"fromRole"`
	ToRole        Role      `json:"toRole"`
	ChangedBy     string    `json:"changedBy"`
	ChangedByName string    `json:"changedByName"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// RoleHistory is a member's current role and their role changes, newest first.
type RoleHistory struct {
	UserID      string             `json:"userId"`
	CurrentRole Role               `json:"currentRole"`
	RoleHistory []RoleHistoryEntry `json:"roleHistory"`
	HasMore     bool               `json:"hasMore"`
}

// GetUserRoleHistory returns the role changes of userID (the caller when
// empty). Looking at another member requires users:view_all.
func (s *Service) GetUserRoleHistory(ctx context.Context, teamID, userID string, limit int) (*RoleHistory, error) {
	_, userID, err := s.authorizeUser(ctx, teamID, userID)
	if err != nil {
		return nil, s.fail(ctx, "GetUserRoleHistory", teamID, err)
	}
	switch {
	case limit < 0:
		return nil, s.fail(ctx, "GetUserRoleHistory", teamID, invalidArgument("limit cannot be negative"))
	case limit == 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	// Deleted members keep their history.
	member, err := s.resolver.Resolve(ctx, userID, teamID)
	if err != nil {
		return nil, s.fail(ctx, "GetUserRoleHistory", teamID, err)
	}

	filter := NewAuditLogFilter().
		WithTargetUser(userID).
		WithAction(AuditActionRoleChanged).
		WithLimit(limit)
	page, err := s.ledger.Query(ctx, teamID, filter)
	if err != nil {
		return nil, s.fail(ctx, "GetUserRoleHistory", teamID, err)
	}

	history := &RoleHistory{
		UserID:      member.UserID,
		CurrentRole: member.Role,
		RoleHistory: make([]RoleHistoryEntry, 0, len(page.Entries)),
		HasMore:     page.HasMore,
	}
	for _, e := range page.Entries {
		history.RoleHistory = append(history.RoleHistory, RoleHistoryEntry{
			ID:            e.ID,
			FromRole:      e.Details.FromRole,
			ToRole:        e.Details.ToRole,
			ChangedBy:     e.ActorID,
			ChangedByName: e.ActorDisplayName,
			Reason:        e.Details.Reason,
			Timestamp:     e.Timestamp,
		})
	}
	return history, nil
}

// GetRoleChangeStats aggregates the team's role changes over the last days
// days. Zero selects DefaultStatsDays. Requires audit:view.
func (s *Service) GetRoleChangeStats(ctx context.Context, teamID string, days int) (*RoleChangeStats, error) {
	if _, err := s.authorize(ctx, teamID, PermAuditView); err != nil {
		return nil, s.fail(ctx, "GetRoleChangeStats", teamID, err)
	}
	if days == 0 {
		days = DefaultStatsDays
	}

	stats, err := s.ledger.Statistics(ctx, teamID, days)
	if err != nil {
		return nil, s.fail(ctx, "GetRoleChangeStats", teamID, err)
	}
	return stats, nil
}
