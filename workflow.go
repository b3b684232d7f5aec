package crewkit

import (
	"context"

	"go.uber.org/zap"
)

// workflowEdges lists the legal transitions of a stored request. Requests
// executed at creation (admin requester) are opened directly as completed.
var workflowEdges = map[WorkflowStatus][]WorkflowStatus{
	WorkflowPending:  {WorkflowApproved, WorkflowRejected},
	WorkflowApproved: {WorkflowCompleted},
}

func canMoveWorkflow(from, to WorkflowStatus) bool {
	for _, s := range workflowEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// WorkflowTracker persists role change requests and enforces their state machine:
// pending -> approved -> completed, pending -> rejected.
type WorkflowTracker struct {
	store   WorkflowStore
	logger  *zap.Logger
	now     Clock
	metrics *Metrics
}

// NewWorkflowTracker creates a tracker backed by store.
func NewWorkflowTracker(store WorkflowStore, opts ...Option) *WorkflowTracker {
	o := buildOptions(opts)
	return &WorkflowTracker{
		store:   store,
		logger:  o.logger,
		now:     o.now,
		metrics: o.metrics,
	}
}

// Open records a new request. Status must be pending, or completed when the
// change was executed in the same call (admin requester). A completed request
// is stamped as processed by its requester.
func (w *WorkflowTracker) Open(ctx context.Context, wf RoleChangeWorkflow) (*RoleChangeWorkflow, error) {
	if wf.TeamID == "" || wf.RequesterID == "" || wf.TargetUserID == "" {
		return nil, invalidArgument("team, requester and target are required")
	}
	if !wf.FromRole.IsValid() || !wf.ToRole.IsValid() {
		return nil, invalidArgument("request roles must be valid")
	}

	now := w.now().UTC()
	wf.RequestID = newRequestID()
	wf.RequestedAt = now

	switch wf.Status {
	case "", WorkflowPending:
		wf.Status = WorkflowPending
	case WorkflowCompleted:
		wf.ProcessedAt = now
		wf.ProcessedBy = wf.RequesterID
	default:
		return nil, NewError(ErrInvalidWorkflowTransition, "new requests start pending or completed").
			WithTeam(wf.TeamID)
	}

	if err := w.store.InsertWorkflow(ctx, &wf); err != nil {
		return nil, err
	}
	w.metrics.observeWorkflow(wf.Status)
	w.logger.Info("role change request opened",
		zap.String("team_id", wf.TeamID),
		zap.String("request_id", wf.RequestID),
		zap.String("requester_id", wf.RequesterID),
		zap.String("target_user_id", wf.TargetUserID),
		zap.String("status", string(wf.Status)),
	)
	return &wf, nil
}

// Get returns a request by ID.
func (w *WorkflowTracker) Get(ctx context.Context, teamID, requestID string) (*RoleChangeWorkflow, error) {
	if requestID == "" {
		return nil, invalidArgument("request ID is required")
	}
	return w.store.GetWorkflow(ctx, teamID, requestID)
}

// List returns the team's requests, optionally restricted to one status.
func (w *WorkflowTracker) List(ctx context.Context, teamID string, status WorkflowStatus) ([]RoleChangeWorkflow, error) {
	if status != "" && !status.IsValid() {
		return nil, invalidArgument("unknown status %q", status)
	}
	return w.store.ListWorkflows(ctx, teamID, status)
}

// Approve moves a pending request to approved.
func (w *WorkflowTracker) Approve(ctx context.Context, teamID, requestID, processorID string) (*RoleChangeWorkflow, error) {
	return w.transition(ctx, teamID, requestID, WorkflowApproved, func(wf *RoleChangeWorkflow) {
		wf.ProcessedBy = processorID
	})
}

// Reject moves a pending request to the terminal rejected state.
func (w *WorkflowTracker) Reject(ctx context.Context, teamID, requestID, processorID, reason string) (*RoleChangeWorkflow, error) {
	return w.transition(ctx, teamID, requestID, WorkflowRejected, func(wf *RoleChangeWorkflow) {
		wf.ProcessedBy = processorID
		wf.RejectionReason = reason
	})
}

// Complete marks an approved request as executed.
func (w *WorkflowTracker) Complete(ctx context.Context, teamID, requestID string) (*RoleChangeWorkflow, error) {
	return w.transition(ctx, teamID, requestID, WorkflowCompleted, nil)
}

func (w *WorkflowTracker) transition(ctx context.Context, teamID, requestID string, to WorkflowStatus, mutate func(*RoleChangeWorkflow)) (*RoleChangeWorkflow, error) {
	wf, err := w.Get(ctx, teamID, requestID)
	if err != nil {
		return nil, err
	}

	if !canMoveWorkflow(wf.Status, to) {
		return nil, NewError(ErrInvalidWorkflowTransition, string(wf.Status)+" -> "+string(to)).
			WithTeam(teamID)
	}

	from := wf.Status
	wf.Status = to
	wf.ProcessedAt = w.now().UTC()
	if mutate != nil {
		mutate(wf)
	}
	// The store re-checks from atomically; a concurrent transition wins there.
	if err := w.store.UpdateWorkflow(ctx, wf, from); err != nil {
		return nil, err
	}

	w.metrics.observeWorkflow(to)
	w.logger.Info("role change request updated",
		zap.String("team_id", teamID),
		zap.String("request_id", requestID),
		zap.String("status", string(to)),
		zap.String("processed_by", wf.ProcessedBy),
	)
	return wf, nil
}
