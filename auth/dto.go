// Package auth provides authentication and authorization functionality.
// This file, `dto.go` (Data Transfer Object), defines the typed request and
// response bodies of the authentication endpoints.
package auth

// RegisterRequest represents the registration request payload.
// Struct tags `json:"..."` define the JSON keys, `validate:"..."` the boundary checks,
// `example:"..."` feeds the Swagger documentation.
type RegisterRequest struct {
	Username string `json:"username" validate:"required" example:"newuser"`
	Email    string `json:"email" validate:"required,email" example:"user@example.com"`
	Password string `json:"password" validate:"required" example:"strongpassword123"`
}

// LoginRequest represents the login request payload.
// It carries no validate tags: any decodable body is checked against the store,
// so a malformed email or empty password fails the same way as a wrong one.
type LoginRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"strongpassword123"`
}

// TokenResponse is returned to the client upon successful login.
type TokenResponse struct {
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}
