package crewkit

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

// AuditLedger is the append-only, per-team log of role changes.
type AuditLedger struct {
	store   AuditStore
	logger  *zap.Logger
	now     Clock
	metrics *Metrics
}

// NewAuditLedger creates a ledger writing to store.
func NewAuditLedger(store AuditStore, opts ...Option) *AuditLedger {
	o := buildOptions(opts)
	return &AuditLedger{
		store:   store,
		logger:  o.logger,
		now:     o.now,
		metrics: o.metrics,
	}
}

// Append assigns an ID and timestamp to entry and stores it.
// It never fails the caller: storage errors are logged and counted, and an
// empty ID is returned. Entries are never retried or amended.
func (l *AuditLedger) Append(ctx context.Context, entry AuditLogEntry) string {
	entry.Timestamp = l.now().UTC()
	entry.ID = newAuditID(entry.Timestamp)

	if err := l.store.InsertAuditLog(ctx, &entry); err != nil {
		l.metrics.observeAuditFailure()
		l.logger.Error("audit append failed",
			zap.String("team_id", entry.TeamID),
			zap.String("actor_id", entry.ActorID),
			zap.String("target_user_id", entry.TargetUserID),
			zap.String("action", string(entry.Action)),
			zap.String("request_id", GetRequestID(ctx)),
			zap.Error(err),
		)
		return ""
	}
	return entry.ID
}

// AuditPage is one page of audit entries, newest first.
type AuditPage struct {
	Entries []AuditLogEntry `json:"auditLogs"`
	HasMore bool            `json:"hasMore"`
}

// Query returns entries of teamID matching filter, ordered by timestamp
// descending. HasMore is true when the page is full.
func (l *AuditLedger) Query(ctx context.Context, teamID string, filter AuditLogFilter) (*AuditPage, error) {
	filter = filter.normalized()

	entries, err := l.store.ListAuditLogs(ctx, teamID, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []AuditLogEntry{}
	}
	return &AuditPage{
		Entries: entries,
		HasMore: len(entries) == filter.Limit,
	}, nil
}

// Statistics window limits, in days.
const (
	DefaultStatsDays = 30
	MaxStatsDays     = 365

	recentChangesLimit = 10
	topActorsLimit     = 5
)

// ActorCount is how many role changes an actor made in the window.
type ActorCount struct {
	ActorID          string `json:"actorId"`
	ActorDisplayName string `json:"actorDisplayName"`
	Count            int    `json:"count"`
}

// DailyCount is the number of role changes on one UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// RoleChangeStats aggregates role_changed entries over a window.
type RoleChangeStats struct {
	TeamID           string          `json:"teamId"`
	WindowDays       int             `json:"windowDays"`
	Since            time.Time       `json:"since"`
	TotalChanges     int             `json:"totalChanges"`
	RoleDistribution map[Role]int    `json:"roleDistribution"`
	TopActors        []ActorCount    `json:"topActors"`
	RecentChanges    []AuditLogEntry `json:"recentChanges"`
	DailyTimeline    []DailyCount    `json:"dailyTimeline"`
}

// Statistics aggregates role_changed entries with timestamp >= now - days.
func (l *AuditLedger) Statistics(ctx context.Context, teamID string, days int) (*RoleChangeStats, error) {
	if days < 1 || days > MaxStatsDays {
		return nil, invalidArgument("days must be between 1 and %d", MaxStatsDays)
	}

	now := l.now().UTC()
	since := now.Add(-time.Duration(days) * 24 * time.Hour)
	filter := AuditLogFilter{}.
		WithAction(AuditActionRoleChanged).
		WithSince(since).
		WithUntil(now)

	// Limit 0 asks the store for every matching entry.
	entries, err := l.store.ListAuditLogs(ctx, teamID, filter)
	if err != nil {
		return nil, err
	}

	stats := &RoleChangeStats{
		TeamID:           teamID,
		WindowDays:       days,
		Since:            since,
		RoleDistribution: make(map[Role]int, len(Roles)),
		TopActors:        []ActorCount{},
		RecentChanges:    []AuditLogEntry{},
		DailyTimeline:    []DailyCount{},
	}
	for _, r := range Roles {
		stats.RoleDistribution[r] = 0
	}

	actors := make(map[string]*ActorCount)
	daily := make(map[string]int)
	for i := range entries {
		e := &entries[i]
		if e.Action != AuditActionRoleChanged || e.Timestamp.Before(since) {
			continue
		}
		stats.TotalChanges++

		if e.Details.ToRole != "" {
			stats.RoleDistribution[e.Details.ToRole]++
		}

		ac, ok := actors[e.ActorID]
		if !ok {
			ac = &ActorCount{ActorID: e.ActorID, ActorDisplayName: e.ActorDisplayName}
			actors[e.ActorID] = ac
		}
		ac.Count++

		daily[e.Timestamp.UTC().Format(time.DateOnly)]++

		if len(stats.RecentChanges) < recentChangesLimit {
			stats.RecentChanges = append(stats.RecentChanges, *e)
		}
	}

	for _, ac := range actors {
		stats.TopActors = append(stats.TopActors, *ac)
	}
	sort.Slice(stats.TopActors, func(i, j int) bool {
		if stats.TopActors[i].Count != stats.TopActors[j].Count {
			return stats.TopActors[i].Count > stats.TopActors[j].Count
		}
		return stats.TopActors[i].ActorID < stats.TopActors[j].ActorID
	})
	if len(stats.TopActors) > topActorsLimit {
		stats.TopActors = stats.TopActors[:topActorsLimit]
	}

	for date, count := range daily {
		stats.DailyTimeline = append(stats.DailyTimeline, DailyCount{Date: date, Count: count})
	}
	sort.Slice(stats.DailyTimeline, func(i, j int) bool {
		return stats.DailyTimeline[i].Date < stats.DailyTimeline[j].Date
	})

	return stats, nil
}
