// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services and workers read
// them without importing net/http.
//
// Usage in services:
//
//	adminID := requestcontext.AdminID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "minderdesk/pkg/domain"
)

type (
	adminIDKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyAdminID     = adminIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// AdminID retrieves the authenticated admin ID from the context.
// Returns the zero value if not set.
func AdminID(ctx context.Context) id.AdminID {
	if adminID, ok := ctx.Value(ContextKeyAdminID).(id.AdminID); ok {
		return adminID
	}
	return id.AdminID{}
}

// WithAdminID injects an admin ID into the context.
func WithAdminID(ctx context.Context, adminID id.AdminID) context.Context {
	return context.WithValue(ctx, ContextKeyAdminID, adminID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI, tests
// that don't inject one).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service
// unit tests and for workers that need a consistent time across a batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
