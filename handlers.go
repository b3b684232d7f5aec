package crewkit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

type routerConfig struct {
	checks        []namedCheck
	metrics       http.Handler
	healthTimeout time.Duration
}

type namedCheck struct {
	name  string
	check HealthCheck
}

// RouterOption configures NewRouter.
type RouterOption func(*routerConfig)

// WithHealthCheck adds a dependency check to GET /healthz.
func WithHealthCheck(name string, check HealthCheck) RouterOption {
	return func(c *routerConfig) {
		c.checks = append(c.checks, namedCheck{name: name, check: check})
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) RouterOption {
	return func(c *routerConfig) {
		c.metrics = h
	}
}

// NewRouter exposes every Service operation as a JSON endpoint.
//
// Example:
//
//	mw := crewkit.NewMiddleware(service, crewkit.WithUserIDExtractor(identity.UserID))
//	router := crewkit.NewRouter(service, mw,
//	    crewkit.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
//	)
//	http.ListenAndServe(":8080", router)
func NewRouter(svc *Service, mw *Middleware, opts ...RouterOption) chi.Router {
	cfg := routerConfig{healthTimeout: 2 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	h := &handler{svc: svc}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mw.Instrument())
	r.Use(mw.InjectAuditContext())

	r.Get("/healthz", healthHandler(cfg))
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate())

		r.Post("/roles/validate-transition", h.validateTransition)

		r.Route("/teams/{teamID}", func(r chi.Router) {
			r.Post("/roles/change", h.changeRole)
			r.Post("/roles/bulk-change", h.bulkChangeRoles)

			r.Get("/permissions", h.teamPermissions)
			r.Post("/permissions/check", h.checkPermission)
			r.Get("/members/{userID}/permissions", h.userPermissions)

			r.Get("/audit-logs", h.auditLogs)
			r.Get("/assignable-roles", h.assignableRoles)
			r.Get("/role-history", h.roleHistory)
			r.Get("/role-stats", h.roleStats)

			r.Post("/role-requests", h.requestRoleChange)
			r.Get("/role-requests", h.listRoleRequests)
			r.Post("/role-requests/{requestID}/approve", h.approveRoleRequest)
			r.Post("/role-requests/{requestID}/reject", h.rejectRoleRequest)
		})
	})

	return r
}

func healthHandler(cfg routerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), cfg.healthTimeout)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(cfg.checks))
		for _, c := range cfg.checks {
			if err := c.check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				checks[c.name] = err.Error()
				continue
			}
			checks[c.name] = "ok"
		}

		body := map[string]any{"status": "ok", "checks": checks}
		if status != http.StatusOK {
			body["status"] = "unavailable"
		}
		writeJSON(w, status, body)
	}
}

// ============================================================================
// HANDLERS
// ============================================================================

type handler struct {
	svc *Service
}

func (h *handler) changeRole(w http.ResponseWriter, r *http.Request) {
	var in ChangeRoleInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.TeamID = chi.URLParam(r, "teamID")

	res, err := h.svc.ChangeUserRole(r.Context(), in)
	respond(w, r, res, err)
}

func (h *handler) bulkChangeRoles(w http.ResponseWriter, r *http.Request) {
	var in BulkChangeInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.TeamID = chi.URLParam(r, "teamID")

	res, err := h.svc.BulkChangeRoles(r.Context(), in)
	respond(w, r, res, err)
}

func (h *handler) userPermissions(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetUserPermissions(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "userID"))
	respond(w, r, res, err)
}

func (h *handler) teamPermissions(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetTeamPermissions(r.Context(), chi.URLParam(r, "teamID"))
	respond(w, r, res, err)
}

type checkPermissionBody struct {
	Permission string `json:"permission"`
	UserID     string `json:"userId,omitempty"`
}

func (h *handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	var in checkPermissionBody
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := h.svc.CheckPermission(r.Context(), chi.URLParam(r, "teamID"), in.Permission, in.UserID)
	respond(w, r, res, err)
}

func (h *handler) auditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := h.svc.GetAuditLogs(r.Context(), chi.URLParam(r, "teamID"), AuditLogQuery{
		Limit:        limit,
		Offset:       offset,
		ActorID:      q.Get("actorId"),
		TargetUserID: q.Get("targetUserId"),
		Action:       AuditAction(q.Get("action")),
	})
	respond(w, r, res, err)
}

func (h *handler) assignableRoles(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetAssignableRoles(r.Context(), chi.URLParam(r, "teamID"))
	respond(w, r, res, err)
}

func (h *handler) roleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	res, err := h.svc.GetUserRoleHistory(r.Context(), chi.URLParam(r, "teamID"), r.URL.Query().Get("userId"), limit)
	respond(w, r, res, err)
}

func (h *handler) roleStats(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r.URL.Query().Get("days"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	res, err := h.svc.GetRoleChangeStats(r.Context(), chi.URLParam(r, "teamID"), days)
	respond(w, r, res, err)
}

func (h *handler) validateTransition(w http.ResponseWriter, r *http.Request) {
	var in ValidateRoleTransitionInput
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := h.svc.ValidateRoleTransition(r.Context(), in)
	respond(w, r, res, err)
}

func (h *handler) requestRoleChange(w http.ResponseWriter, r *http.Request) {
	var in ChangeRoleInput
	if !decodeBody(w, r, &in) {
		return
	}
	in.TeamID = chi.URLParam(r, "teamID")

	res, err := h.svc.RequestRoleChange(r.Context(), in)
	if err == nil && res.Status == WorkflowPending {
		writeJSON(w, http.StatusAccepted, res)
		return
	}
	respond(w, r, res, err)
}

func (h *handler) listRoleRequests(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListRoleChangeRequests(r.Context(), chi.URLParam(r, "teamID"),
		WorkflowStatus(r.URL.Query().Get("status")))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": res})
}

func (h *handler) approveRoleRequest(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ApproveRoleChange(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "requestID"))
	respond(w, r, res, err)
}

type rejectBody struct {
	Reason string `json:"reason,omitempty"`
}

func (h *handler) rejectRoleRequest(w http.ResponseWriter, r *http.Request) {
	var in rejectBody
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := h.svc.RejectRoleChange(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "requestID"), in.Reason)
	respond(w, r, res, err)
}

// ============================================================================
// ENCODING
// ============================================================================

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	switch Kind(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error body. Internal errors are reported
// without detail.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	detail := errorDetail{Code: Code(err), Message: Message(err)}
	if status == http.StatusInternalServerError {
		detail = errorDetail{Code: CodeInternal, Message: http.StatusText(status)}
	}
	writeJSON(w, status, errorBody{Error: detail})
}

func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, r, invalidArgument("malformed request body"))
		return false
	}
	return true
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidArgument("%q is not a number", raw)
	}
	return n, nil
}
