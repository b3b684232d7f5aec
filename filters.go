package crewkit

import "time"

// Audit query limits.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 100
)

// AuditLogFilter provides options for filtering audit log queries.
type AuditLogFilter struct {
	// Filter by actor who performed the action
	ActorID string

	// Filter by target user of the action
	TargetUserID string

	// Filter by action type
	Action AuditAction

	// Filter by time range
	Since time.Time
	Until time.Time

	// Pagination
	Limit  int
	Offset int
}

// NewAuditLogFilter creates a new AuditLogFilter with default values.
func NewAuditLogFilter() AuditLogFilter {
	return AuditLogFilter{
		Limit: DefaultAuditLimit,
	}
}

// WithActor sets the actor ID filter.
func (f AuditLogFilter) WithActor(actorID string) AuditLogFilter {
	f.ActorID = actorID
	return f
}

// WithTargetUser sets the target user ID filter.
func (f AuditLogFilter) WithTargetUser(userID string) AuditLogFilter {
	f.TargetUserID = userID
	return f
}

// WithAction sets the action filter.
func (f AuditLogFilter) WithAction(action AuditAction) AuditLogFilter {
	f.Action = action
	return f
}

// WithSince sets the start time filter.
func (f AuditLogFilter) WithSince(since time.Time) AuditLogFilter {
	f.Since = since
	return f
}

// WithUntil sets the end time filter.
func (f AuditLogFilter) WithUntil(until time.Time) AuditLogFilter {
	f.Until = until
	return f
}

// WithLimit sets the limit for results.
func (f AuditLogFilter) WithLimit(limit int) AuditLogFilter {
	f.Limit = limit
	return f
}

// WithOffset sets the offset for pagination.
func (f AuditLogFilter) WithOffset(offset int) AuditLogFilter {
	f.Offset = offset
	return f
}

// WithPagination sets both limit and offset.
func (f AuditLogFilter) WithPagination(limit, offset int) AuditLogFilter {
	f.Limit = limit
	f.Offset = offset
	return f
}

// Matches reports whether entry passes every non-pagination filter.
// Stores that cannot push filters down use it to filter in memory.
func (f AuditLogFilter) Matches(entry *AuditLogEntry) bool {
	if f.ActorID != "" && entry.ActorID != f.ActorID {
		return false
	}
	if f.TargetUserID != "" && entry.TargetUserID != f.TargetUserID {
		return false
	}
	if f.Action != "" && entry.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && entry.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && entry.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// normalized clamps pagination to the supported range.
func (f AuditLogFilter) normalized() AuditLogFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultAuditLimit
	}
	if f.Limit > MaxAuditLimit {
		f.Limit = MaxAuditLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
