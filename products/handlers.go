package products

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/user/shopfront-go/auth"
)

// Handlers serves the product routes.
type Handlers struct{}

// NewHandlers creates a new Handlers instance.
func NewHandlers() *Handlers {
	return &Handlers{}
}

// HandleList godoc
// @Summary List Products
// @Description Returns the product catalog. Requires a bearer token from /login.
// @Tags Products
// @Produce json
// @Success 200 {array} products.Product "Product catalog"
// @Failure 401 "Unauthorized - Missing, invalid or expired token"
// @Router /products [get]
// @Security BearerAuth
func (h *Handlers) HandleList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
			zerolog.Ctx(r.Context()).Debug().Str("user_id", claims.UserID).Msg("listing products")
		}
		auth.WriteJSON(w, r, http.StatusOK, List())
	}
}
