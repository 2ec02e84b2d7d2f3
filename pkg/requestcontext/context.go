// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets values, services read them. Keeping this package free of
// net/http lets services stay transport-agnostic.
//
// Usage in services (read values):
//
//	caller := requestcontext.CallerID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithCallerID(ctx, caller)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (pin the clock):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "covenant/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	callerIDKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyCallerID    = callerIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// CallerID retrieves the authenticated caller account from the context.
// Returns the null identifier when no caller is set.
func CallerID(ctx context.Context) id.AccountID {
	if caller, ok := ctx.Value(ContextKeyCallerID).(id.AccountID); ok {
		return caller
	}
	return id.ZeroAccount
}

// WithCallerID injects the caller account into the context.
func WithCallerID(ctx context.Context, caller id.AccountID) context.Context {
	return context.WithValue(ctx, ContextKeyCallerID, caller)
}

// RequestID retrieves the request ID from the context; empty if unset.
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the ambient operation time. Time advances only as an input
// supplied at the call boundary: middleware stamps the request time once and
// every deadline or daily-window comparison in that operation reads the same
// instant. Falls back to the wall clock when no time was injected.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}

// WithTime pins the ambient time. Middleware uses it per request; tests use
// it to drive window resets and governance deadlines deterministically.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
