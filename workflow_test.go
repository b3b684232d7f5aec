package crewkit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPending(t *testing.T, w *WorkflowTracker) *RoleChangeWorkflow {
	t.Helper()
	wf, err := w.Open(context.Background(), RoleChangeWorkflow{
		TeamID:       "team-1",
		RequesterID:  workerID,
		TargetUserID: workerID,
		FromRole:     RoleFieldWorker,
		ToRole:       RoleManager,
		Reason:       "Three seasons on the crew",
	})
	require.NoError(t, err)
	return wf
}

// lockstepStore holds each GetWorkflow until the expected number of callers have read, so
// concurrent transitions all start from the same stored status.
type lockstepStore struct {
	*MemoryStore
	readers sync.WaitGroup
}

func (s *lockstepStore) GetWorkflow(ctx context.Context, teamID, requestID string) (*RoleChangeWorkflow, error) {
	wf, err := s.MemoryStore.GetWorkflow(ctx, teamID, requestID)
	s.readers.Done()
	s.readers.Wait()
	return wf, err
}

// TestWorkflowOpen tests request creation
func TestWorkflowOpen(t *testing.T) {
	w := NewWorkflowTracker(NewMemoryStore(), WithClock(fixedClock))

	wf := openPending(t, w)
	assert.NotEmpty(t, wf.RequestID)
	assert.Equal(t, WorkflowPending, wf.Status)
	assert.Equal(t, fixedNow, wf.RequestedAt)
	assert.True(t, wf.ProcessedAt.IsZero())
	assert.Empty(t, wf.ProcessedBy)

	stored, err := w.Get(context.Background(), "team-1", wf.RequestID)
	require.NoError(t, err)
	assert.Equal(t, *wf, *stored)
}

// TestWorkflowOpenCompleted tests requests executed at creation
func TestWorkflowOpenCompleted(t *testing.T) {
	w := NewWorkflowTracker(NewMemoryStore(), WithClock(fixedClock))

	wf, err := w.Open(context.Background(), RoleChangeWorkflow{
		TeamID:       "team-1",
		RequesterID:  adminID,
		TargetUserID: workerID,
		FromRole:     RoleFieldWorker,
		ToRole:       RoleManager,
		Status:       WorkflowCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, WorkflowCompleted, wf.Status)
	assert.Equal(t, adminID, wf.ProcessedBy)
	assert.Equal(t, fixedNow, wf.ProcessedAt)

	_, err = w.Approve(context.Background(), "team-1", wf.RequestID, managerID)
	assert.ErrorIs(t, err, ErrInvalidWorkflowTransition)
}

// TestWorkflowOpenValidation tests rejected request shapes
func TestWorkflowOpenValidation(t *testing.T) {
	w := NewWorkflowTracker(NewMemoryStore())
	ctx := context.Background()

	_, err := w.Open(ctx, RoleChangeWorkflow{TeamID: "team-1", RequesterID: workerID, FromRole: RoleFieldWorker, ToRole: RoleManager})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = w.Open(ctx, RoleChangeWorkflow{TeamID: "team-1", RequesterID: workerID, TargetUserID: workerID, FromRole: RoleFieldWorker, ToRole: "owner"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = w.Open(ctx, RoleChangeWorkflow{
		TeamID: "team-1", RequesterID: workerID, TargetUserID: workerID,
		FromRole: RoleFieldWorker, ToRole: RoleManager, Status: WorkflowApproved,
	})
	assert.ErrorIs(t, err, ErrInvalidWorkflowTransition)
}

// TestWorkflowApproveThenComplete tests the happy path
func TestWorkflowApproveThenComplete(t *testing.T) {
	w := NewWorkflowTracker(NewMemoryStore(), WithClock(fixedClock))
	wf := openPending(t, w)

	approved, err := w.Approve(context.Background(), "team-1", wf.RequestID, adminID)
	require.NoError(t, err)
	assert.Equal(t, WorkflowApproved, approved.Status)
	assert.Equal(t, adminID, approved.ProcessedBy)
	assert.Equal(t, fixedNow, approved.ProcessedAt)

	completed, err := w.Complete(context.Background(), "team-1", wf.RequestID)
	require.NoError(t, err)
	assert.Equal(t, WorkflowCompleted, completed.Status)
	assert.Equal(t, adminID, completed.ProcessedBy)
}

// TestWorkflowReject tests rejection and terminal states
func TestWorkflowReject(t *testing.T) {
	w := NewWorkflowTracker(NewMemoryStore())
	wf := openPending(t, w)
	ctx := context.Background()

	rejected, err := w.Reject(ctx, "team-1", wf.RequestID, managerID, "Not this season")
	require.NoError(t, err)
	assert.Equal(t, WorkflowRejected, rejected.Status)
	assert.Equal(t, "Not this season", rejected.RejectionReason)
	assert.True(t, rejected.Status.IsTerminal())

	_, err = w.Approve(ctx, "team-1", wf.RequestID, adminID)
	assert.ErrorIs(t, err, ErrInvalidWorkflowTransition)
	_, err = w.Reject(ctx, "team-1", wf.RequestID, adminID, "")
	assert.ErrorIs(t, err, ErrInvalidWorkflowTransition)
	_, err = w.Complete(ctx, "team-1", wf.RequestID)
	assert.ErrorIs(t, err, ErrInvalidWorkflowTransition)
}

// TestWorkflowIllegalEdges tests every transition outside the state machine
func TestWorkflowIllegalEdges(t *testing.T) {
	legal := map[[2]WorkflowStatus]bool{
		{WorkflowPending, WorkflowApproved}:   true,
		{WorkflowPending, WorkflowRejected}:   true,
		{WorkflowApproved, WorkflowCompleted}: true,
	}
	all := []WorkflowStatus{WorkflowPending, WorkflowApproved, WorkflowRejected, WorkflowCompleted}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]WorkflowStatus{from, to}], canMoveWorkflow(from, to), "%s -> %s", from, to)
		}
	}

	// Complete straight from pending skips approval.
	w := NewWorkflowTracker(NewMemoryStore())
	wf := openPending(t, w)
	_, err := w.Complete(context.Background(), "team-1", wf.RequestID)
	assert.ErrorIs(t, err, ErrInvalidWorkflowTransition)
}

// TestWorkflowTeamIsolation tests that requests are scoped to their team
func TestWorkflowTeamIsolation(t *testing.T) {
	w := NewWorkflowTracker(NewMemoryStore())
	wf := openPending(t, w)

	_, err := w.Get(context.Background(), "team-2", wf.RequestID)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	_, err = w.Approve(context.Background(), "team-2", wf.RequestID, adminID)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)

	_, err = w.Get(context.Background(), "team-1", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// TestWorkflowList tests listing with a status filter
func TestWorkflowList(t *testing.T) {
	w := NewWorkflowTracker(NewMemoryStore(), WithClock(steppingClock(fixedNow, time.Minute)))
	first := openPending(t, w)
	second := openPending(t, w)
	_, err := w.Reject(context.Background(), "team-1", first.RequestID, adminID, "")
	require.NoError(t, err)

	all, err := w.List(context.Background(), "team-1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.RequestID, all[0].RequestID)

	pending, err := w.List(context.Background(), "team-1", WorkflowPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.RequestID, pending[0].RequestID)

	_, err = w.List(context.Background(), "team-1", "archived")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}


// TestWorkflowConcurrentDecisions tests that only one of a racing approve and
// reject applies to a pending request
func TestWorkflowConcurrentDecisions(t *testing.T) {
	mem := NewMemoryStore()
	wf := openPending(t, NewWorkflowTracker(mem))

	store := &lockstepStore{MemoryStore: mem}
	store.readers.Add(2)
	w := NewWorkflowTracker(store)
	ctx := context.Background()

	var approveErr, rejectErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, approveErr = w.Approve(ctx, "team-1", wf.RequestID, adminID)
	}()
	go func() {
		defer wg.Done()
		_, rejectErr = w.Reject(ctx, "team-1", wf.RequestID, managerID, "Not this season")
	}()
	wg.Wait()

	stored, err := mem.GetWorkflow(ctx, "team-1", wf.RequestID)
	require.NoError(t, err)

	if approveErr == nil {
		assert.ErrorIs(t, rejectErr, ErrInvalidWorkflowTransition)
		assert.Equal(t, WorkflowApproved, stored.Status)
		assert.Equal(t, adminID, stored.ProcessedBy)
		assert.Empty(t, stored.RejectionReason)
	} else {
		require.NoError(t, rejectErr)
		assert.ErrorIs(t, approveErr, ErrInvalidWorkflowTransition)
		assert.Equal(t, WorkflowRejected, stored.Status)
		assert.Equal(t, managerID, stored.ProcessedBy)
	}
}
