// Package auth is responsible for handling authentication and authorization logic.
// This includes user registration, login, token generation (JWT), and token validation.
package auth

import (
	"context"
	"errors"

	// Library for password hashing using bcrypt.
	"golang.org/x/crypto/bcrypt"

	"github.com/user/shopfront-go/apperror"
	"github.com/user/shopfront-go/config"
	"github.com/user/shopfront-go/users"
)

// invalidCredentials is the single message for every login failure, so a caller
// cannot tell an unknown email from a wrong password.
const invalidCredentials = "invalid credentials"

// AuthService provides authentication-related services.
// Dependencies are injected explicitly through the constructor.
type AuthService struct {
	store      users.Store
	tokens     *TokenIssuer
	bcryptCost int
}

// NewAuthService creates a new AuthService backed by the given credential store.
func NewAuthService(store users.Store, authConfig config.AuthConfig) *AuthService {
	cost := authConfig.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{
		store:      store,
		tokens:     NewTokenIssuer(authConfig.JWTSecret, authConfig.TokenDuration, authConfig.Issuer),
		bcryptCost: cost,
	}
}

// Tokens exposes the issuer so the gate middleware verifies with the same key.
func (s *AuthService) Tokens() *TokenIssuer {
	return s.tokens
}

// Register hashes the password and stores a new user record.
// Duplicate emails are accepted; the first record wins at login.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*users.User, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperror.NewValidationError("password: must be at most 72 bytes", err)
		}
		return nil, apperror.NewInternalError("failed to hash password", err)
	}

	user, err := s.store.Create(ctx, &users.User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: string(hashedPassword),
	})
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to create user", err)
	}

	return user, nil
}

// Login authenticates a user by email and password and returns a signed token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.store.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, apperror.NewAuthError(invalidCredentials, nil)
		}
		return nil, apperror.NewDatabaseError("failed to look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, apperror.NewAuthError(invalidCredentials, nil)
		}
		// A stored hash that bcrypt cannot read is a server-side fault.
		return nil, apperror.NewInternalError("failed to compare password hash", err)
	}

	token, _, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperror.NewInternalError("failed to generate token", err)
	}

	return &TokenResponse{Token: token}, nil
}
