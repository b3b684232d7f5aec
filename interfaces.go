package crewkit

import (
	"context"
	"time"
)

// MemberStore reads and updates team membership records.
// GetMember returns an error matching ErrUserNotFound when no record exists;
// soft-deleted records are returned as-is.
type MemberStore interface {
	GetMember(ctx context.Context, teamID, userID string) (*Member, error)
	ListMembers(ctx context.Context, teamID string) ([]Member, error)
	UpdateMemberRole(ctx context.Context, teamID, userID string, update RoleUpdate) error
}

// AuditStore is the append-only audit collection.
// ListAuditLogs returns entries ordered by timestamp descending; a filter
// Limit <= 0 returns every matching entry.
type AuditStore interface {
	InsertAuditLog(ctx context.Context, entry *AuditLogEntry) error
	ListAuditLogs(ctx context.Context, teamID string, filter AuditLogFilter) ([]AuditLogEntry, error)
}

// WorkflowStore persists role change requests.
// GetWorkflow returns an error matching ErrWorkflowNotFound when absent.
// UpdateWorkflow writes wf only while the stored status is still from, as one
// atomic step; a request that has already moved on yields an error matching
// ErrInvalidWorkflowTransition.
type WorkflowStore interface {
	InsertWorkflow(ctx context.Context, wf *RoleChangeWorkflow) error
	GetWorkflow(ctx context.Context, teamID, requestID string) (*RoleChangeWorkflow, error)
	UpdateWorkflow(ctx context.Context, wf *RoleChangeWorkflow, from WorkflowStatus) error
	ListWorkflows(ctx context.Context, teamID string, status WorkflowStatus) ([]RoleChangeWorkflow, error)
}

// Store bundles every collection the engine needs.
type Store interface {
	MemberStore
	AuditStore
	WorkflowStore
}

// IdentityResolver reads a member's current record. Callers check IsDeleted.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID, teamID string) (*Member, error)
}

// Clock returns the current time. Injected so timestamps are testable.
type Clock func() time.Time

// MemberWriter provisions membership records. Role changes never go through
// it; they are applied by the Coordinator.
type MemberWriter interface {
	PutMember(ctx context.Context, m Member) error
	SoftDeleteMember(ctx context.Context, teamID, userID string) error
}
