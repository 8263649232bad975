// Package common holds request-scoped context helpers shared across packages.
package common

import (
	"context"
)

// contextKey is a private type for context keys used in this package
type contextKey string

const (
	requestIDKey contextKey = "request_id"
)

// WithRequestID returns a new context carrying the given request ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context
// Returns the request ID and a boolean indicating if it was found
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok && requestID != ""
}
