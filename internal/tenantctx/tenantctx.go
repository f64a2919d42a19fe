// Package tenantctx carries the active tenant through the context of one
// logical operation (HTTP request or background job). Every tenant-scoped
// data access resolves the tenant from here; code that runs without an
// established tenant fails before it reaches the store.
package tenantctx

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoContext means a tenant-scoped operation ran without an
	// established tenant. This is a programming error, not a request
	// validation failure, and is surfaced as a 5xx.
	ErrNoContext = errors.New("tenantctx: no tenant context established")
	// ErrConflict means code tried to rebind a context that already carries
	// a different tenant. Re-entry with a different tenant inside one
	// logical operation is never legitimate.
	ErrConflict = errors.New("tenantctx: context already bound to a different tenant")
)

type ctxKey int

const (
	tenantKey ctxKey = iota
	requestIDKey
)

// Bind derives a context carrying tenantID. Binding the same tenant again is
// a no-op; binding a different tenant returns ErrConflict.
func Bind(ctx context.Context, tenantID string) (context.Context, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantctx: empty tenant id: %w", ErrNoContext)
	}
	if bound, ok := ctx.Value(tenantKey).(string); ok {
		if bound != tenantID {
			return nil, fmt.Errorf("tenantctx: bound to %q, attempted rebind to %q: %w", bound, tenantID, ErrConflict)
		}
		return ctx, nil
	}
	return context.WithValue(ctx, tenantKey, tenantID), nil
}

// Establish runs fn with tenantID bound for the duration of the call and
// everything fn invokes with the derived context, including goroutines it
// hands the context to.
func Establish(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	bound, err := Bind(ctx, tenantID)
	if err != nil {
		return err
	}
	return fn(bound)
}

// Current returns the bound tenant id, or ErrNoContext.
func Current(ctx context.Context) (string, error) {
	if id, ok := ctx.Value(tenantKey).(string); ok && id != "" {
		return id, nil
	}
	return "", ErrNoContext
}

// WithRequestID attaches a request-scoped identifier for diagnostics.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id, or empty if none was attached.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
