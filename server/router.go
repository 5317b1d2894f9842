// Package server assembles the HTTP router: global middleware, the public
// authentication routes, and the product routes behind the token gate.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/user/shopfront-go/apperror"
	"github.com/user/shopfront-go/auth"
	_ "github.com/user/shopfront-go/docs" // Swagger spec registration
	"github.com/user/shopfront-go/logging"
	"github.com/user/shopfront-go/products"
	"github.com/user/shopfront-go/ratelimit"
	"github.com/user/shopfront-go/users"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Auth    *auth.AuthService
	Store   users.Store
	Limiter ratelimit.Limiter // nil disables login throttling
	Logger  zerolog.Logger
	// TrustedProxy enables RealIP. Without it the client address is the TCP peer,
	// so forwarded headers cannot move a caller to a fresh throttle key.
	TrustedProxy bool
}

// NewRouter builds the application's chi router.
func NewRouter(deps Deps) http.Handler {
	authHandlers := auth.NewHandlers(deps.Auth, deps.Limiter)
	productHandlers := products.NewHandlers()

	r := chi.NewRouter()

	// Chi requires all middleware to be registered before any routes.
	r.Use(middleware.RequestID)
	if deps.TrustedProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(logging.RequestLogger(deps.Logger))
	r.Use(recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth(deps.Store))
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Post("/register", authHandlers.HandleRegister())
	r.Post("/login", authHandlers.HandleLogin())

	r.Group(func(r chi.Router) {
		r.Use(auth.JWTMiddleware(deps.Auth.Tokens()))
		r.Get("/products", productHandlers.HandleList())
	})

	return r
}

// recoverer turns a handler panic into a bare 500 and logs it.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				zerolog.Ctx(r.Context()).Error().Interface("panic", rvr).Msg("recovered from panic")
				auth.WriteError(w, r, apperror.NewInternalError("internal server error", nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status string `json:"status" example:"ok"`
}

// handleHealth godoc
// @Summary Health Check
// @Description Reports whether the service and its credential store are reachable.
// @Tags Health
// @Produce json
// @Success 200 {object} server.healthResponse
// @Failure 503 {object} server.healthResponse
// @Router /health [get]
func handleHealth(store users.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := store.(users.Pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
				auth.WriteJSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		auth.WriteJSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
	}
}
