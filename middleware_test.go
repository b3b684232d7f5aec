package crewkit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestMiddlewareNewMiddleware tests the middleware constructor
func TestMiddlewareNewMiddleware(t *testing.T) {
	team := NewTestTeam(t)

	mw := NewMiddleware(team.Service)
	require.NotNil(t, mw)
	assert.Equal(t, team.Service, mw.service)
	assert.NotNil(t, mw.getUserID)
	assert.NotNil(t, mw.errorHandler)
	assert.NotNil(t, mw.logger)

	customUserID := func(r *http.Request) string { return "custom-user" }
	customErrorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusTeapot)
	}

	mw2 := NewMiddleware(team.Service,
		WithUserIDExtractor(customUserID),
		WithErrorHandler(customErrorHandler),
		WithMiddlewareLogger(zap.NewNop()),
		WithMiddlewareLogger(nil),
	)
	req := httptest.NewRequest("GET", "/", nil)
	assert.Equal(t, "custom-user", mw2.getUserID(req))
	assert.NotNil(t, mw2.logger)

	w := httptest.NewRecorder()
	mw2.errorHandler(w, req, nil)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

// TestMiddlewareDefaultGetUserID tests the default user ID extractor
func TestMiddlewareDefaultGetUserID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(WithUserID(context.Background(), "test-user"))
	assert.Equal(t, "test-user", defaultGetUserID(req))

	req = httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, defaultGetUserID(req))
}

// TestMiddlewareAuthenticate tests caller identity propagation
func TestMiddlewareAuthenticate(t *testing.T) {
	team := NewTestTeam(t)
	mw := NewMiddleware(team.Service, WithUserIDExtractor(func(r *http.Request) string {
		return r.Header.Get("X-User")
	}))

	var seen string
	handler := mw.Authenticate()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-User", managerID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, managerID, seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// crewRouter mounts handler behind mw on a team-scoped route, reading the
// caller from the X-User header.
func crewRouter(team *TestTeam, wrap func(*Middleware) func(http.Handler) http.Handler, handler http.HandlerFunc) http.Handler {
	mw := NewMiddleware(team.Service, WithUserIDExtractor(func(r *http.Request) string {
		return r.Header.Get("X-User")
	}))
	r := chi.NewRouter()
	r.Use(mw.Authenticate())
	r.With(wrap(mw)).Get("/teams/{teamID}/incidents", handler)
	return r
}

// TestMiddlewareRequirePermission tests permission enforcement on a route
func TestMiddlewareRequirePermission(t *testing.T) {
	team := NewTestTeam(t)

	var checker *Checker
	router := crewRouter(team,
		func(mw *Middleware) func(http.Handler) http.Handler {
			return mw.RequirePermission(PermIncidentsReadAll, "teamID")
		},
		func(w http.ResponseWriter, r *http.Request) {
			checker = FromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		},
	)

	tests := []struct {
		name   string
		user   string
		team   string
		status int
	}{
		{"manager allowed", managerID, "team-1", http.StatusNoContent},
		{"admin allowed", adminID, "team-1", http.StatusNoContent},
		{"field worker denied", workerID, "team-1", http.StatusForbidden},
		{"deleted member", goneID, "team-1", http.StatusForbidden},
		{"other team", managerID, "team-2", http.StatusForbidden},
		{"anonymous", "", "team-1", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker = nil
			req := httptest.NewRequest("GET", "/teams/"+tt.team+"/incidents", nil)
			req.Header.Set("X-User", tt.user)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, checker)
				assert.Equal(t, tt.user, checker.UserID())
			} else {
				assert.Nil(t, checker)
			}
		})
	}
}

// TestMiddlewareLoadChecker tests optional checker loading
func TestMiddlewareLoadChecker(t *testing.T) {
	team := NewTestTeam(t)

	var billing, loaded bool
	router := crewRouter(team,
		func(mw *Middleware) func(http.Handler) http.Handler { return mw.LoadChecker("teamID") },
		func(w http.ResponseWriter, r *http.Request) {
			checker := FromContext(r.Context())
			loaded = checker != nil
			billing = checker != nil && checker.Can(PermBillingView)
		},
	)

	do := func(user, teamID string) int {
		req := httptest.NewRequest("GET", "/teams/"+teamID+"/incidents", nil)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do(managerID, "team-1"))
	assert.True(t, loaded)
	assert.True(t, billing)

	assert.Equal(t, http.StatusOK, do(workerID, "team-1"))
	assert.True(t, loaded)
	assert.False(t, billing)

	// Non-members pass through without a checker.
	assert.Equal(t, http.StatusOK, do("outsider", "team-1"))
	assert.False(t, loaded)
}

// TestMiddlewareInjectAuditContext tests audit metadata extraction
func TestMiddlewareInjectAuditContext(t *testing.T) {
	team := NewTestTeam(t)
	mw := NewMiddleware(team.Service)

	var got AuditContext
	handler := mw.InjectAuditContext()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetAuditContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "crew-app/2.1")
	req.Header.Set("X-Request-ID", "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.7", got.IPAddress)
	assert.Equal(t, "crew-app/2.1", got.UserAgent)
	assert.Equal(t, "req-42", got.RequestID)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.3")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "198.51.100.3", got.IPAddress)

	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.10:5123"
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "192.0.2.10", got.IPAddress)
}

// TestMiddlewareAuditContextReachesLedger tests that request metadata lands in audit entries
func TestMiddlewareAuditContextReachesLedger(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/teams/team-1/roles/change",
		strings.NewReader(`{"targetUserId":"u-worker","newRole":"manager"}`))
	token, err := s.identity.Issue(adminID, time.Minute)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("X-Request-ID", "req-audit")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	page, err := s.Service.GetAuditLogs(s.As(adminID), s.TeamID, AuditLogQuery{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	md := page.Entries[0].Details.Metadata
	assert.Equal(t, "203.0.113.7", md["ipAddress"])
	assert.Equal(t, "req-audit", md["requestId"])
}
