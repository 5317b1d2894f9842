// Package auth, as part of the authentication module.
// This file, `handlers.go`, is responsible for handling HTTP requests related to authentication.
// It acts as the "Controller" layer: decode, delegate to AuthService, encode.
package auth

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/user/shopfront-go/apperror"
	"github.com/user/shopfront-go/ratelimit"
)

// Handlers wraps the AuthService to provide HTTP handlers.
// The limiter is optional; nil disables failed-login throttling.
type Handlers struct {
	service *AuthService
	limiter ratelimit.Limiter
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *AuthService, limiter ratelimit.Limiter) *Handlers {
	return &Handlers{service: service, limiter: limiter}
}

// HandleRegister godoc
// @Summary User Registration
// @Description Registers a new user. Duplicate emails are accepted.
// @Tags Auth
// @Accept json
// @Param registerBody body auth.RegisterRequest true "User registration details"
// @Success 200 "User registered"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Invalid input or missing fields"
// @Failure 500 "Internal Server Error"
// @Router /register [post]
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, apperror.NewBadRequestError("invalid request body", err))
			return
		}

		user, err := h.service.Register(r.Context(), req)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		zerolog.Ctx(r.Context()).Info().Str("user_id", user.ID).Msg("user registered")
		w.WriteHeader(http.StatusOK)
	}
}

// HandleLogin godoc
// @Summary User Login
// @Description Verifies email and password and returns a signed bearer token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param loginBody body auth.LoginRequest true "User login credentials"
// @Success 200 {object} auth.TokenResponse "Login successful"
// @Failure 400 {object} apperror.ErrorResponse "Bad Request - Body is not valid JSON"
// @Failure 401 "Unauthorized - Invalid credentials"
// @Failure 429 "Too Many Requests - Retry-After header carries the lockout in seconds"
// @Failure 500 "Internal Server Error"
// @Router /login [post]
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		ctx := r.Context()
		log := zerolog.Ctx(ctx)
		key := clientKey(r)

		if h.limiter != nil {
			retryAfter, err := h.limiter.Check(ctx, key)
			if err != nil {
				log.Warn().Err(err).Msg("login throttle unavailable, allowing attempt")
			} else if retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				WriteError(w, r, apperror.NewTooManyRequestsError("too many failed login attempts", nil))
				return
			}
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, apperror.NewBadRequestError("invalid request body", err))
			return
		}

		resp, err := h.service.Login(ctx, req)
		if err != nil {
			if h.limiter != nil && apperror.IsAuthError(err) {
				remaining, lerr := h.limiter.RecordFailure(ctx, key)
				if lerr != nil {
					log.Warn().Err(lerr).Msg("failed to record login failure")
				} else {
					log.Debug().Int("remaining_attempts", remaining).Msg("login failed")
				}
			}
			WriteError(w, r, err)
			return
		}

		if h.limiter != nil {
			if err := h.limiter.Reset(ctx, key); err != nil {
				log.Warn().Err(err).Msg("failed to reset login attempts")
			}
		}

		writeJSON(w, r, http.StatusOK, resp)
	}
}

// clientKey identifies the caller for throttling: the host part of RemoteAddr,
// which RealIP rewrites only when the router runs behind a trusted proxy.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSON serializes `data` to JSON and writes it with the given `status`.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; all that is left is to log.
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

// WriteJSON is the exported form of writeJSON for handlers in other packages.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, r, status, data)
}

// WriteError converts any error into an HTTP response.
// Bad input gets a JSON `{"error": ...}` body; authentication failures, throttling
// and server errors get a bare status code with the cause only logged.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.FromError(err)
	if !ok {
		appErr = apperror.NewInternalError("an unexpected error occurred", err)
	}

	status := appErr.StatusCode()
	log := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(appErr).Str("error_type", appErr.Type.String()).Msg("request failed")
	} else {
		log.Debug().Err(appErr).Str("error_type", appErr.Type.String()).Msg("request rejected")
	}

	if !appErr.HasClientBody() {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, r, status, appErr.ToResponse())
}
