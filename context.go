package crewkit

import (
	"context"
)

// Context keys for crewkit values.
type contextKey string

const (
	contextKeyUserID    contextKey = "crewkit:user_id"
	contextKeyIPAddress contextKey = "crewkit:ip_address"
	contextKeyUserAgent contextKey = "crewkit:user_agent"
	contextKeyRequestID contextKey = "crewkit:request_id"
	contextKeyChecker   contextKey = "crewkit:checker"
)

// WithUserID adds the authenticated caller's user ID to the context.
// Every Service operation acts on behalf of this user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// GetUserID retrieves the caller's user ID from context.
// Returns empty string if not set.
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, contextKeyUserID)
}

// WithIPAddress adds the client IP address to the context (for audit).
func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKeyIPAddress, ip)
}

// GetIPAddress retrieves the IP address from context.
func GetIPAddress(ctx context.Context) string {
	return stringValue(ctx, contextKeyIPAddress)
}

// WithUserAgent adds the user agent to the context (for audit).
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, contextKeyUserAgent, ua)
}

// GetUserAgent retrieves the user agent from context.
func GetUserAgent(ctx context.Context) string {
	return stringValue(ctx, contextKeyUserAgent)
}

// WithRequestID adds a request ID to the context (for audit and correlation).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, contextKeyRequestID)
}

// WithChecker adds a Checker to the context.
// This is set by middleware and can be retrieved in handlers.
func WithChecker(ctx context.Context, checker *Checker) context.Context {
	return context.WithValue(ctx, contextKeyChecker, checker)
}

// GetChecker retrieves the Checker from context.
// Returns nil if not set.
func GetChecker(ctx context.Context) *Checker {
	if v := ctx.Value(contextKeyChecker); v != nil {
		if c, ok := v.(*Checker); ok {
			return c
		}
	}
	return nil
}

// FromContext retrieves the Checker from context.
// Alias for GetChecker for convenience.
func FromContext(ctx context.Context) *Checker {
	return GetChecker(ctx)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AuditContext holds all audit-related information from context.
type AuditContext struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// GetAuditContext extracts all audit information from context.
func GetAuditContext(ctx context.Context) AuditContext {
	return AuditContext{
		IPAddress: GetIPAddress(ctx),
		UserAgent: GetUserAgent(ctx),
		RequestID: GetRequestID(ctx),
	}
}

// WithAuditContext adds all audit information to context at once.
func WithAuditContext(ctx context.Context, ac AuditContext) context.Context {
	if ac.IPAddress != "" {
		ctx = WithIPAddress(ctx, ac.IPAddress)
	}
	if ac.UserAgent != "" {
		ctx = WithUserAgent(ctx, ac.UserAgent)
	}
	if ac.RequestID != "" {
		ctx = WithRequestID(ctx, ac.RequestID)
	}
	return ctx
}

// Metadata returns the non-empty audit fields as audit entry metadata.
func (ac AuditContext) Metadata() map[string]any {
	md := make(map[string]any, 3)
	if ac.IPAddress != "" {
		md["ipAddress"] = ac.IPAddress
	}
	if ac.UserAgent != "" {
		md["userAgent"] = ac.UserAgent
	}
	if ac.RequestID != "" {
		md["requestId"] = ac.RequestID
	}
	if len(md) == 0 {
		return nil
	}
	return md
}
