package crewkit

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/fernandezvara/dbkit"
)

// PostgresStore is the Store backed by PostgreSQL through dbkit.
// Every write touches a single row; no operation spans a transaction.
//
// Example:
//
//	db, _ := dbkit.New(dbkit.Config{URL: "postgres://..."})
//	_, _ = db.Migrate(ctx, crewkit.Migrations())
//	service := crewkit.NewService(crewkit.NewPostgresStore(db))
type PostgresStore struct {
	db dbkit.IDB
}

// NewPostgresStore creates a store on top of db.
func NewPostgresStore(db dbkit.IDB) *PostgresStore {
	return &PostgresStore{db: db}
}

// storageError marks err as a storage failure while keeping the dbkit detail.
func storageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// ============================================================================
// MEMBERS
// ============================================================================

// GetMember implements MemberStore.
func (s *PostgresStore) GetMember(ctx context.Context, teamID, userID string) (*Member, error) {
	var m Member
	err := dbkit.WithErr1(s.db.NewSelect().Model(&m).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Limit(1).
		Scan(ctx), "GetMember").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrUserNotFound, "").WithTeam(teamID).WithUser(userID)
		}
		return nil, storageError(err)
	}
	return &m, nil
}

// ListMembers implements MemberStore. Members are ordered by user ID.
func (s *PostgresStore) ListMembers(ctx context.Context, teamID string) ([]Member, error) {
	var members []Member
	err := dbkit.WithErr1(s.db.NewSelect().Model(&members).
		Where("team_id = ?", teamID).
		Order("user_id ASC").
		Scan(ctx), "ListMembers").Err()
	if err != nil && !dbkit.IsNotFound(err) {
		return nil, storageError(err)
	}
	return members, nil
}

// UpdateMemberRole implements MemberStore.
func (s *PostgresStore) UpdateMemberRole(ctx context.Context, teamID, userID string, update RoleUpdate) error {
	result, err := s.db.NewUpdate().Model((*Member)(nil)).
		Set("role = ?", update.Role).
		Set("last_modified = ?", update.LastModified).
		Set("modified_by = ?", update.ModifiedBy).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "UpdateMemberRole").Err(); err != nil {
		return storageError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return NewError(ErrUserNotFound, "").WithTeam(teamID).WithUser(userID)
	}
	return nil
}

// PutMember creates a membership record or replaces the profile and role of
// an existing one.
func (s *PostgresStore) PutMember(ctx context.Context, m Member) error {
	result, err := s.db.NewInsert().Model(&m).
		On("CONFLICT (team_id, user_id) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("email = EXCLUDED.email").
		Set("role = EXCLUDED.role").
		Set("is_deleted = EXCLUDED.is_deleted").
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "PutMember").Err(); err != nil {
		return storageError(err)
	}
	return nil
}

// SoftDeleteMember flags a membership record as deleted.
func (s *PostgresStore) SoftDeleteMember(ctx context.Context, teamID, userID string) error {
	result, err := s.db.NewUpdate().Model((*Member)(nil)).
		Set("is_deleted = TRUE").
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "SoftDeleteMember").Err(); err != nil {
		return storageError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return NewError(ErrUserNotFound, "").WithTeam(teamID).WithUser(userID)
	}
	return nil
}

// ============================================================================
// AUDIT LOG
// ============================================================================

// InsertAuditLog implements AuditStore.
func (s *PostgresStore) InsertAuditLog(ctx context.Context, entry *AuditLogEntry) error {
	result, err := s.db.NewInsert().Model(entry).Exec(ctx)
	if err := dbkit.WithErr(result, err, "InsertAuditLog").Err(); err != nil {
		return storageError(err)
	}
	return nil
}

// ListAuditLogs implements AuditStore.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, teamID string, filter AuditLogFilter) ([]AuditLogEntry, error) {
	var logs []AuditLogEntry
	q := s.db.NewSelect().Model(&logs).Where("team_id = ?", teamID)
	q = applyAuditFilter(q, filter)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	q = q.Order("timestamp DESC", "id DESC")

	if err := dbkit.WithErr1(q.Scan(ctx), "ListAuditLogs").Err(); err != nil && !dbkit.IsNotFound(err) {
		return nil, storageError(err)
	}
	return logs, nil
}

func applyAuditFilter(q *bun.SelectQuery, filter AuditLogFilter) *bun.SelectQuery {
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if filter.TargetUserID != "" {
		q = q.Where("target_user_id = ?", filter.TargetUserID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("timestamp <= ?", filter.Until)
	}
	return q
}

// ============================================================================
// ROLE CHANGE REQUESTS
// ============================================================================

// InsertWorkflow implements WorkflowStore.
func (s *PostgresStore) InsertWorkflow(ctx context.Context, wf *RoleChangeWorkflow) error {
	result, err := s.db.NewInsert().Model(wf).Exec(ctx)
	if err := dbkit.WithErr(result, err, "InsertWorkflow").Err(); err != nil {
		return storageError(err)
	}
	return nil
}

// GetWorkflow implements WorkflowStore.
func (s *PostgresStore) GetWorkflow(ctx context.Context, teamID, requestID string) (*RoleChangeWorkflow, error) {
	var wf RoleChangeWorkflow
	err := dbkit.WithErr1(s.db.NewSelect().Model(&wf).
		Where("team_id = ? AND request_id = ?", teamID, requestID).
		Limit(1).
		Scan(ctx), "GetWorkflow").Err()
	if err != nil {
		if dbkit.IsNotFound(err) {
			return nil, NewError(ErrWorkflowNotFound, requestID).WithTeam(teamID)
		}
		return nil, storageError(err)
	}
	return &wf, nil
}

// UpdateWorkflow implements WorkflowStore. The status guard is part of the
// UPDATE, so concurrent transitions of one request cannot both apply.
func (s *PostgresStore) UpdateWorkflow(ctx context.Context, wf *RoleChangeWorkflow, from WorkflowStatus) error {
	result, err := s.db.NewUpdate().Model(wf).
		Column("status", "processed_at", "processed_by", "rejection_reason").
		Where("team_id = ? AND request_id = ?", wf.TeamID, wf.RequestID).
		Where("status = ?", from).
		Exec(ctx)
	if err := dbkit.WithErr(result, err, "UpdateWorkflow").Err(); err != nil {
		return storageError(err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		return nil
	}

	exists, err := dbkit.Exists[RoleChangeWorkflow](ctx, s.db, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("team_id = ? AND request_id = ?", wf.TeamID, wf.RequestID)
	})
	if err != nil {
		return storageError(err)
	}
	if !exists {
		return NewError(ErrWorkflowNotFound, wf.RequestID).WithTeam(wf.TeamID)
	}
	return NewError(ErrInvalidWorkflowTransition, "request is no longer "+string(from)).WithTeam(wf.TeamID)
}

// ListWorkflows implements WorkflowStore. Newest requests come first.
func (s *PostgresStore) ListWorkflows(ctx context.Context, teamID string, status WorkflowStatus) ([]RoleChangeWorkflow, error) {
	var out []RoleChangeWorkflow
	q := s.db.NewSelect().Model(&out).Where("team_id = ?", teamID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Order("requested_at DESC", "request_id ASC")

	if err := dbkit.WithErr1(q.Scan(ctx), "ListWorkflows").Err(); err != nil && !dbkit.IsNotFound(err) {
		return nil, storageError(err)
	}
	return out, nil
}
