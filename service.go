package crewkit

import (
	"go.uber.org/zap"
)

// Service is the RPC boundary of the engine. Every operation acts on behalf of
// the caller identified by GetUserID(ctx) and checks the caller's membership
// in the team before doing anything else.
//
// Error Handling:
// Operations return the package sentinel errors wrapped in *Error. Use Kind
// to map them to a transport status and Message for the text shown to the
// caller; storage failures report KindInternal and a generic message.
//
// Example:
//
//	res, err := service.ChangeUserRole(ctx, crewkit.ChangeRoleInput{
//	    TeamID:       teamID,
//	    TargetUserID: userID,
//	    NewRole:      crewkit.RoleManager,
//	})
//	if err != nil {
//	    switch crewkit.Kind(err) {
//	    case crewkit.KindPermissionDenied:
//	        // 403
//	    case crewkit.KindNotFound:
//	        // 404
//	    }
//	}
type Service struct {
	members   MemberStore
	resolver  IdentityResolver
	oracle    *PermissionOracle
	validator *TransitionValidator
	coord     *Coordinator
	ledger    *AuditLedger
	workflows *WorkflowTracker
	logger    *zap.Logger
	metrics   *Metrics
}

// NewService wires every engine component on top of store.
//
// Example:
//
//	store := crewkit.NewMemoryStore()
//	service := crewkit.NewService(store, crewkit.WithLogger(logger))
func NewService(store Store, opts ...Option) *Service {
	o := buildOptions(opts)
	// Components share the resolved options so metrics and clock are common.
	shared := []Option{WithLogger(o.logger), WithClock(o.now), WithMetrics(o.metrics)}

	resolver := NewStoreResolver(store)
	validator := NewTransitionValidator(resolver)
	ledger := NewAuditLedger(store, shared...)

	return &Service{
		members:   store,
		resolver:  resolver,
		oracle:    NewPermissionOracle(resolver),
		validator: validator,
		coord:     NewCoordinator(validator, store, ledger, shared...),
		ledger:    ledger,
		workflows: NewWorkflowTracker(store, shared...),
		logger:    o.logger,
		metrics:   o.metrics,
	}
}

// Oracle returns the permission oracle used by the service.
func (s *Service) Oracle() *PermissionOracle {
	return s.oracle
}

// Ledger returns the audit ledger used by the service.
func (s *Service) Ledger() *AuditLedger {
	return s.ledger
}

// Workflows returns the role change request tracker.
func (s *Service) Workflows() *WorkflowTracker {
	return s.workflows
}
