// Package auth, as part of the authentication module.
// This file, `context.go`, carries the verified token claims inside the request's
// `context.Context` so handlers behind the gate can read who is calling.
package auth

import (
	"context"
)

// `contextKey` is a custom type for context keys. Using a custom type prevents collisions
// with context keys defined in other packages.
type contextKey string

const (
	// `claimsContextKey` is the specific key used to store authentication claims in the context.
	claimsContextKey contextKey = "auth_claims"
)

// NewContextWithClaims creates a new context with CustomClaims
func NewContextWithClaims(ctx context.Context, claims *CustomClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext extracts CustomClaims from context.
// The second return value reports whether claims were present.
func ClaimsFromContext(ctx context.Context) (*CustomClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*CustomClaims)
	return claims, ok
}
