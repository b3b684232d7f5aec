package crewkit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Middleware provides HTTP middleware for caller identity and permission checks.
type Middleware struct {
	service      *Service
	getUserID    func(*http.Request) string
	errorHandler func(http.ResponseWriter, *http.Request, error)
	logger       *zap.Logger
}

// MiddlewareOption configures the Middleware.
type MiddlewareOption func(*Middleware)

// NewMiddleware creates a new Middleware instance.
//
// Example:
//
//	identity, _ := crewkit.NewJWTIdentity(secret, "crewkit")
//	mw := crewkit.NewMiddleware(service,
//	    crewkit.WithUserIDExtractor(identity.UserID),
//	)
func NewMiddleware(service *Service, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		service:      service,
		getUserID:    defaultGetUserID,
		errorHandler: WriteError,
		logger:       service.logger,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithUserIDExtractor sets a custom function to extract user ID from request.
func WithUserIDExtractor(fn func(*http.Request) string) MiddlewareOption {
	return func(m *Middleware) {
		m.getUserID = fn
	}
}

// WithErrorHandler sets a custom error handler for middleware.
func WithErrorHandler(fn func(http.ResponseWriter, *http.Request, error)) MiddlewareOption {
	return func(m *Middleware) {
		m.errorHandler = fn
	}
}

// WithMiddlewareLogger sets the logger used for request logging.
func WithMiddlewareLogger(logger *zap.Logger) MiddlewareOption {
	return func(m *Middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func defaultGetUserID(r *http.Request) string {
	return GetUserID(r.Context())
}

// Authenticate stores the caller's user ID in the request context and
// rejects requests without one.
//
// Example:
//
//	router.With(mw.Authenticate()).Get("/teams/{teamID}/permissions", h)
func (m *Middleware) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := m.getUserID(r)
			if userID == "" {
				m.errorHandler(w, r, NewError(ErrUnauthenticated, "missing or invalid credentials"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// RequirePermission creates middleware that requires the caller to hold
// permission in the team named by the teamParam URL parameter. The caller's
// Checker is stored in the request context for the handler.
//
// Example:
//
//	router.With(mw.RequirePermission(crewkit.PermIncidentsAssign, "teamID")).
//	    Post("/teams/{teamID}/incidents/{incidentID}/assign", assignHandler)
func (m *Middleware) RequirePermission(permission Permission, teamParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			checker, err := m.service.GetChecker(ctx, chi.URLParam(r, teamParam))
			if err != nil {
				m.errorHandler(w, r, err)
				return
			}

			granted := checker.Can(permission)
			m.service.metrics.observePermissionCheck(granted)
			if !granted {
				m.errorHandler(w, r, NewError(ErrInsufficientPermissions, "missing "+permission.String()).
					WithTeam(checker.TeamID()).
					WithUser(checker.UserID()).
					WithRole(checker.Role()))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithChecker(ctx, checker)))
		})
	}
}

// LoadChecker creates middleware that loads the caller's Checker into context
// when the caller is a member of the team. Use this when permission checks
// happen in the handler rather than in middleware.
//
// Example:
//
//	router.With(mw.LoadChecker("teamID")).Get("/teams/{teamID}/dashboard", dashboardHandler)
//
//	func dashboardHandler(w http.ResponseWriter, r *http.Request) {
//	    checker := crewkit.FromContext(r.Context())
//	    if checker != nil && checker.Can(crewkit.PermBillingView) {
//	        // Show billing widgets
//	    }
//	}
func (m *Middleware) LoadChecker(teamParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			checker, err := m.service.GetChecker(ctx, chi.URLParam(r, teamParam))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithChecker(ctx, checker)))
		})
	}
}

// InjectAuditContext creates middleware that extracts audit information from
// the request and adds it to the context; role changes copy it into audit
// entry metadata.
//
// Example:
//
//	router.Use(mw.InjectAuditContext())
func (m *Middleware) InjectAuditContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = chimw.GetReqID(r.Context())
			}

			ctx := WithAuditContext(r.Context(), AuditContext{
				IPAddress: clientIP(r),
				UserAgent: r.UserAgent(),
				RequestID: requestID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Instrument records request counts and latencies by route pattern, and logs
// every request.
func (m *Middleware) Instrument() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			m.service.metrics.observeHTTPRequest(r.Method, route, strconv.Itoa(status), elapsed)
			m.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("duration", elapsed),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
