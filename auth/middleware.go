// Package auth, as part of the authentication module.
// This file, `middleware.go`, defines the bearer-token gate placed in front of protected routes.
package auth

import (
	"net/http"
	"strings"

	"github.com/user/shopfront-go/apperror"
)

// bearerToken returns the second whitespace-separated field of the
// Authorization header. The scheme word itself is not inspected.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) < 2 {
		return "", false
	}
	return parts[1], true
}

// JWTMiddleware creates the authentication gate.
// It verifies the token from the Authorization header and stores its claims in the request context.
// Every rejection is a bare 401; the reason is only logged.
func JWTMiddleware(tokens *TokenIssuer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, r, apperror.NewAuthError("authorization header is missing or malformed", nil))
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				WriteError(w, r, apperror.NewAuthError("invalid token", err))
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithClaims(r.Context(), claims)))
		})
	}
}
