package crewkit

import (
	"time"

	"github.com/uptrace/bun"
)

// Member is a user's membership record in a team.
// Members are uniquely keyed by (TeamID, UserID).
type Member struct {
	bun.BaseModel `bun:"table:team_members,alias:tm"`

	TeamID       string    `bun:"team_id,pk" json:"teamId"`
	UserID       string    `bun:"user_id,pk" json:"userId"`
	DisplayName  string    `bun:"display_name,notnull" json:"displayName"`
	Email        string    `bun:"email,notnull" json:"email"`
	Role         Role      `bun:"role,notnull" json:"role"`
	IsDeleted    bool      `bun:"is_deleted,notnull,default:false" json:"isDeleted"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	LastModified time.Time `bun:"last_modified,nullzero" json:"lastModified,omitempty"`
	ModifiedBy   string    `bun:"modified_by,nullzero" json:"modifiedBy,omitempty"`
}

// RoleUpdate is the write applied to a member record by a role change.
type RoleUpdate struct {
	Role         Role
	LastModified time.Time
	ModifiedBy   string
}

// AuditAction represents the type of action in the audit log.
type AuditAction string

const (
	AuditActionRoleChanged       AuditAction = "role_changed"
	AuditActionRoleGranted       AuditAction = "role_granted"
	AuditActionRoleRevoked       AuditAction = "role_revoked"
	AuditActionPermissionGranted AuditAction = "permission_granted"
	AuditActionPermissionRevoked AuditAction = "permission_revoked"
)

// IsValid reports whether a is a known audit action.
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionRoleChanged, AuditActionRoleGranted, AuditActionRoleRevoked,
		AuditActionPermissionGranted, AuditActionPermissionRevoked:
		return true
	}
	return false
}

// AuditDetails holds the action-specific part of an audit entry.
type AuditDetails struct {
	FromRole    Role           `json:"fromRole,omitempty"`
	ToRole      Role           `json:"toRole,omitempty"`
	Permissions []Permission   `json:"permissions,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// AuditLogEntry records an authorization-relevant change in a team.
// Entries are immutable once appended.
type AuditLogEntry struct {
	bun.BaseModel `bun:"table:role_audit_log,alias:ral"`

	ID                string       `bun:"id,pk" json:"id"`
	Action            AuditAction  `bun:"action,notnull" json:"action"`
	ActorID           string       `bun:"actor_id,notnull" json:"actorId"`
	ActorDisplayName  string       `bun:"actor_display_name" json:"actorDisplayName"`
	TargetUserID      string       `bun:"target_user_id,notnull" json:"targetUserId"`
	TargetDisplayName string       `bun:"target_display_name" json:"targetDisplayName"`
	TeamID            string       `bun:"team_id,notnull" json:"teamId"`
	Details           AuditDetails `bun:"details,type:jsonb" json:"details"`
	Timestamp         time.Time    `bun:"timestamp,notnull" json:"timestamp"`
}

// WorkflowStatus is the lifecycle state of a role change request.
type WorkflowStatus string

const (
	WorkflowPending   WorkflowStatus = "pending"
	WorkflowApproved  WorkflowStatus = "approved"
	WorkflowRejected  WorkflowStatus = "rejected"
	WorkflowCompleted WorkflowStatus = "completed"
)

// IsTerminal reports whether no further transition is possible.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowRejected || s == WorkflowCompleted
}

// IsValid reports whether s is a known status.
func (s WorkflowStatus) IsValid() bool {
	switch s {
	case WorkflowPending, WorkflowApproved, WorkflowRejected, WorkflowCompleted:
		return true
	}
	return false
}

// RoleChangeWorkflow tracks a role change request that may need approval.
type RoleChangeWorkflow struct {
	bun.BaseModel `bun:"table:role_change_requests,alias:rcr"`

	RequestID       string         `bun:"request_id,pk" json:"requestId"`
	TeamID          string         `bun:"team_id,notnull" json:"teamId"`
	RequesterID     string         `bun:"requester_id,notnull" json:"requesterId"`
	TargetUserID    string         `bun:"target_user_id,notnull" json:"targetUserId"`
	FromRole        Role           `bun:"from_role,notnull" json:"fromRole"`
	ToRole          Role           `bun:"to_role,notnull" json:"toRole"`
	Reason          string         `bun:"reason" json:"reason,omitempty"`
	Status          WorkflowStatus `bun:"status,notnull" json:"status"`
	RequestedAt     time.Time      `bun:"requested_at,notnull" json:"requestedAt"`
	ProcessedAt     time.Time      `bun:"processed_at,nullzero" json:"processedAt,omitempty"`
	ProcessedBy     string         `bun:"processed_by,nullzero" json:"processedBy,omitempty"`
	RejectionReason string         `bun:"rejection_reason,nullzero" json:"rejectionReason,omitempty"`
}

// BulkChangeItem is the outcome for one target of a bulk role change.
type BulkChangeItem struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	Success     bool   `json:"success"`
	FromRole    Role   `json:"fromRole,omitempty"`
	ToRole      Role   `json:"toRole,omitempty"`
	Error       string `json:"error,omitempty"`

	err error
}

// Err returns the error that failed this item, or nil on success.
func (i BulkChangeItem) Err() error {
	return i.err
}

// BulkChangeResult holds one item per requested target, in request order.
type BulkChangeResult struct {
	Results        []BulkChangeItem `json:"results"`
	SuccessCount   int              `json:"successCount"`
	FailureCount   int              `json:"failureCount"`
	TotalProcessed int              `json:"totalProcessed"`
}
