package crewkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock returns start, then start+step, start+2*step, ...
func steppingClock(start time.Time, step time.Duration) Clock {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(step)
		return now
	}
}

func appendChange(l *AuditLedger, teamID, actorID, targetID string, from, to Role) string {
	return l.Append(context.Background(), AuditLogEntry{
		Action:           AuditActionRoleChanged,
		ActorID:          actorID,
		ActorDisplayName: "Actor " + actorID,
		TargetUserID:     targetID,
		TeamID:           teamID,
		Details:          AuditDetails{FromRole: from, ToRole: to},
	})
}

// TestAuditLedgerAppend tests ID and timestamp assignment
func TestAuditLedgerAppend(t *testing.T) {
	store := NewMemoryStore()
	ledger := NewAuditLedger(store, WithClock(fixedClock))

	id := appendChange(ledger, "team-1", adminID, workerID, RoleFieldWorker, RoleManager)
	require.NotEmpty(t, id)

	entries, err := store.ListAuditLogs(context.Background(), "team-1", AuditLogFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, fixedNow, entries[0].Timestamp)
}

// TestAuditLedgerIDsAreSortable tests that IDs follow append order
func TestAuditLedgerIDsAreSortable(t *testing.T) {
	ledger := NewAuditLedger(NewMemoryStore(), WithClock(fixedClock))

	prev := ""
	for i := 0; i < 20; i++ {
		id := appendChange(ledger, "team-1", adminID, workerID, RoleFieldWorker, RoleManager)
		assert.Greater(t, id, prev)
		prev = id
	}
}

// TestAuditLedgerQueryOrderAndPaging tests newest-first pages and hasMore
func TestAuditLedgerQueryOrderAndPaging(t *testing.T) {
	store := NewMemoryStore()
	ledger := NewAuditLedger(store, WithClock(steppingClock(fixedNow, time.Minute)))

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, appendChange(ledger, "team-1", adminID, workerID, RoleFieldWorker, RoleManager))
	}
	appendChange(ledger, "team-2", adminID, workerID, RoleFieldWorker, RoleManager)

	page, err := ledger.Query(context.Background(), "team-1", AuditLogFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[4], page.Entries[0].ID)
	assert.Equal(t, ids[3], page.Entries[1].ID)

	page, err = ledger.Query(context.Background(), "team-1", AuditLogFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, ids[0], page.Entries[0].ID)

	page, err = ledger.Query(context.Background(), "team-1", AuditLogFilter{Offset: 10})
	require.NoError(t, err)
	assert.NotNil(t, page.Entries)
	assert.Empty(t, page.Entries)
}

// TestAuditLedgerQueryClampsLimit tests the page size bounds
func TestAuditLedgerQueryClampsLimit(t *testing.T) {
	store := NewMemoryStore()
	ledger := NewAuditLedger(store, WithClock(steppingClock(fixedNow, time.Second)))
	for i := 0; i < MaxAuditLimit+10; i++ {
		appendChange(ledger, "team-1", adminID, workerID, RoleFieldWorker, RoleManager)
	}

	page, err := ledger.Query(context.Background(), "team-1", AuditLogFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, page.Entries, MaxAuditLimit)
	assert.True(t, page.HasMore)

	page, err = ledger.Query(context.Background(), "team-1", AuditLogFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Entries, DefaultAuditLimit)
}

// TestAuditLedgerQueryFilters tests target and action filters
func TestAuditLedgerQueryFilters(t *testing.T) {
	store := NewMemoryStore()
	ledger := NewAuditLedger(store, WithClock(steppingClock(fixedNow, time.Second)))

	appendChange(ledger, "team-1", adminID, workerID, RoleFieldWorker, RoleManager)
	appendChange(ledger, "team-1", adminID, worker2ID, RoleFieldWorker, RoleManager)
	ledger.Append(context.Background(), AuditLogEntry{
		Action:       AuditActionRoleGranted,
		ActorID:      adminID,
		TargetUserID: workerID,
		TeamID:       "team-1",
	})

	page, err := ledger.Query(context.Background(), "team-1", AuditLogFilter{TargetUserID: workerID})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 2)

	page, err = ledger.Query(context.Background(), "team-1",
		AuditLogFilter{TargetUserID: workerID, Action: AuditActionRoleChanged})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, RoleManager, page.Entries[0].Details.ToRole)
}

// TestAuditLedgerStatistics tests aggregation over the window
func TestAuditLedgerStatistics(t *testing.T) {
	store := NewMemoryStore()
	start := fixedNow.Add(-40 * 24 * time.Hour)
	clock := start
	ledger := NewAuditLedger(store, WithClock(func() time.Time { return clock }))

	// Outside a 30 day window.
	appendChange(ledger, "team-1", adminID, workerID, RoleFieldWorker, RoleManager)

	clock = fixedNow.Add(-2 * 24 * time.Hour)
	appendChange(ledger, "team-1", adminID, workerID, RoleFieldWorker, RoleManager)
	appendChange(ledger, "team-1", adminID, worker2ID, RoleFieldWorker, RoleManager)
	clock = fixedNow.Add(-24 * time.Hour)
	appendChange(ledger, "team-1", managerID, worker3ID, RoleFieldWorker, RoleFieldWorker)
	ledger.Append(context.Background(), AuditLogEntry{
		Action: AuditActionRoleGranted, ActorID: adminID, TargetUserID: workerID, TeamID: "team-1",
	})

	// After the window closes.
	clock = fixedNow.Add(time.Hour)
	appendChange(ledger, "team-1", managerID, worker2ID, RoleManager, RoleAdmin)

	clock = fixedNow
	stats, err := ledger.Statistics(context.Background(), "team-1", 30)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalChanges)
	assert.Equal(t, 30, stats.WindowDays)
	assert.Equal(t, fixedNow.Add(-30*24*time.Hour), stats.Since)
	assert.Equal(t, map[Role]int{RoleAdmin: 0, RoleManager: 2, RoleFieldWorker: 1}, stats.RoleDistribution)

	require.Len(t, stats.TopActors, 2)
	assert.Equal(t, ActorCount{ActorID: adminID, ActorDisplayName: "Actor " + adminID, Count: 2}, stats.TopActors[0])
	assert.Equal(t, managerID, stats.TopActors[1].ActorID)

	require.Len(t, stats.RecentChanges, 3)
	assert.Equal(t, worker3ID, stats.RecentChanges[0].TargetUserID)

	assert.Equal(t, []DailyCount{
		{Date: fixedNow.Add(-2 * 24 * time.Hour).Format(time.DateOnly), Count: 2},
		{Date: fixedNow.Add(-24 * time.Hour).Format(time.DateOnly), Count: 1},
	}, stats.DailyTimeline)
}

// TestAuditLedgerStatisticsEmpty tests an empty team
func TestAuditLedgerStatisticsEmpty(t *testing.T) {
	ledger := NewAuditLedger(NewMemoryStore(), WithClock(fixedClock))

	stats, err := ledger.Statistics(context.Background(), "team-1", 7)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChanges)
	assert.NotNil(t, stats.TopActors)
	assert.NotNil(t, stats.RecentChanges)
	assert.NotNil(t, stats.DailyTimeline)
	assert.Len(t, stats.RoleDistribution, 3)
}

// TestAuditLedgerStatisticsWindowBounds tests the days argument
func TestAuditLedgerStatisticsWindowBounds(t *testing.T) {
	ledger := NewAuditLedger(NewMemoryStore(), WithClock(fixedClock))

	for _, days := range []int{0, -1, MaxStatsDays + 1} {
		_, err := ledger.Statistics(context.Background(), "team-1", days)
		assert.ErrorIs(t, err, ErrInvalidArgument, "days=%d", days)
	}

	_, err := ledger.Statistics(context.Background(), "team-1", MaxStatsDays)
	assert.NoError(t, err)
}
