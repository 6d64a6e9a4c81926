// Package handler provides the HTTP glue for the checkout engine: routing,
// request/response DTOs, bearer authentication, and the mapping from domain
// failures to HTTP statuses. All business rules live in internal/domain.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/digigoods/internal/domain/checkout"
	"github.com/xenking/digigoods/internal/domain/product"
)

// Handler serves the API endpoints.
type Handler struct {
	products product.Repository
	checkout *checkout.Service
}

// New constructs a Handler with the required domain dependencies.
func New(products product.Repository, checkoutSvc *checkout.Service) *Handler {
	return &Handler{
		products: products,
		checkout: checkoutSvc,
	}
}

// Router builds the chi router. The checkout endpoint sits behind the given
// authentication middleware; the catalog listing is public.
func (h *Handler) Router(auth func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/checkout", h.Checkout)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("write response", zap.Error(err))
	}
}

type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorResponse{Status: status, Message: message})
}
