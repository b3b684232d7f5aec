package crewkit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It backs tests, the demo application and
// crewkitd when no database is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	members   map[string]Member
	audit     map[string][]AuditLogEntry
	workflows map[string]RoleChangeWorkflow
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members:   make(map[string]Member),
		audit:     make(map[string][]AuditLogEntry),
		workflows: make(map[string]RoleChangeWorkflow),
	}
}

func memberKey(teamID, userID string) string {
	return teamID + ":" + userID
}

// PutMember creates or replaces a membership record.
func (s *MemoryStore) PutMember(ctx context.Context, m Member) error {
	if m.TeamID == "" || m.UserID == "" {
		return invalidArgument("team ID and user ID are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.members[memberKey(m.TeamID, m.UserID)] = m
	return nil
}

// SoftDeleteMember flags a membership record as deleted.
func (s *MemoryStore) SoftDeleteMember(ctx context.Context, teamID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey(teamID, userID)
	m, ok := s.members[key]
	if !ok {
		return NewError(ErrUserNotFound, "").WithTeam(teamID).WithUser(userID)
	}
	m.IsDeleted = true
	s.members[key] = m
	return nil
}

// GetMember implements MemberStore.
func (s *MemoryStore) GetMember(ctx context.Context, teamID, userID string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[memberKey(teamID, userID)]
	if !ok {
		return nil, NewError(ErrUserNotFound, "").WithTeam(teamID).WithUser(userID)
	}
	return &m, nil
}

// ListMembers implements MemberStore. Members are ordered by user ID.
func (s *MemoryStore) ListMembers(ctx context.Context, teamID string) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []Member
	for _, m := range s.members {
		if m.TeamID == teamID {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].UserID < members[j].UserID
	})
	return members, nil
}

// UpdateMemberRole implements MemberStore.
func (s *MemoryStore) UpdateMemberRole(ctx context.Context, teamID, userID string, update RoleUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memberKey(teamID, userID)
	m, ok := s.members[key]
	if !ok {
		return NewError(ErrUserNotFound, "").WithTeam(teamID).WithUser(userID)
	}
	m.Role = update.Role
	m.LastModified = update.LastModified
	m.ModifiedBy = update.ModifiedBy
	s.members[key] = m
	return nil
}

// InsertAuditLog implements AuditStore.
func (s *MemoryStore) InsertAuditLog(ctx context.Context, entry *AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit[entry.TeamID] = append(s.audit[entry.TeamID], cloneAuditEntry(*entry))
	return nil
}

// ListAuditLogs implements AuditStore.
func (s *MemoryStore) ListAuditLogs(ctx context.Context, teamID string, filter AuditLogFilter) ([]AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []AuditLogEntry
	for i := range s.audit[teamID] {
		if filter.Matches(&s.audit[teamID][i]) {
			matched = append(matched, cloneAuditEntry(s.audit[teamID][i]))
		}
	}

	// Newest first; IDs are time-ordered ULIDs and break timestamp ties.
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []AuditLogEntry{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// AuditLogCount returns how many entries the team has.
func (s *MemoryStore) AuditLogCount(teamID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audit[teamID])
}

// InsertWorkflow implements WorkflowStore.
func (s *MemoryStore) InsertWorkflow(ctx context.Context, wf *RoleChangeWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows[wf.RequestID] = *wf
	return nil
}

// GetWorkflow implements WorkflowStore.
func (s *MemoryStore) GetWorkflow(ctx context.Context, teamID, requestID string) (*RoleChangeWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, ok := s.workflows[requestID]
	if !ok || wf.TeamID != teamID {
		return nil, NewError(ErrWorkflowNotFound, requestID).WithTeam(teamID)
	}
	return &wf, nil
}

// UpdateWorkflow implements WorkflowStore.
func (s *MemoryStore) UpdateWorkflow(ctx context.Context, wf *RoleChangeWorkflow, from WorkflowStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.workflows[wf.RequestID]
	if !ok || existing.TeamID != wf.TeamID {
		return NewError(ErrWorkflowNotFound, wf.RequestID).WithTeam(wf.TeamID)
	}
	if existing.Status != from {
		return NewError(ErrInvalidWorkflowTransition, string(existing.Status)+" -> "+string(wf.Status)).
			WithTeam(wf.TeamID)
	}
	s.workflows[wf.RequestID] = *wf
	return nil
}

// ListWorkflows implements WorkflowStore. Newest requests come first.
func (s *MemoryStore) ListWorkflows(ctx context.Context, teamID string, status WorkflowStatus) ([]RoleChangeWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RoleChangeWorkflow
	for _, wf := range s.workflows {
		if wf.TeamID != teamID {
			continue
		}
		if status != "" && wf.Status != status {
			continue
		}
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.After(out[j].RequestedAt)
		}
		return out[i].RequestID < out[j].RequestID
	})
	return out, nil
}

func cloneAuditEntry(e AuditLogEntry) AuditLogEntry {
	if e.Details.Permissions != nil {
		e.Details.Permissions = append([]Permission(nil), e.Details.Permissions...)
	}
	if e.Details.Metadata != nil {
		md := make(map[string]any, len(e.Details.Metadata))
		for k, v := range e.Details.Metadata {
			md[k] = v
		}
		e.Details.Metadata = md
	}
	return e
}
