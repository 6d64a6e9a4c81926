package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/digigoods/internal/domain/checkout"
	"github.com/xenking/digigoods/internal/domain/discount"
)

type checkoutRequest struct {
	UserID        int64    `json:"user_id"`
	ProductIDs    []int64  `json:"product_ids"`
	DiscountCodes []string `json:"discount_codes"`
}

type checkoutResponse struct {
	OrderID          string          `json:"order_id"`
	Message          string          `json:"message"`
	OriginalSubtotal decimal.Decimal `json:"original_subtotal"`
	FinalPrice       decimal.Decimal `json:"final_price"`
	AppliedCodes     []string        `json:"applied_codes"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Checkout decodes the request, resolves the authenticated identity from the
// context, delegates to the checkout service, and maps the result or failure
// to an HTTP response.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.checkout.Process(r.Context(), userID, checkout.Request{
		UserID:        req.UserID,
		ProductIDs:    req.ProductIDs,
		DiscountCodes: req.DiscountCodes,
	})
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, checkoutResponse{
		OrderID:          result.Order.ID,
		Message:          "Order created successfully!",
		OriginalSubtotal: result.Order.OriginalSubtotal,
		FinalPrice:       result.Order.FinalPrice,
		AppliedCodes:     result.Order.AppliedCodes,
		CreatedAt:        result.Order.CreatedAt,
	})
}

// writeCheckoutError maps domain failures to HTTP statuses: 403 for identity
// mismatch, 404 for unknown products, 400 for discount and stock failures,
// 500 for anything unexpected.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound  *checkout.ProductNotFoundError
		codeErr   *discount.CodeError
		excessive *checkout.ExcessiveDiscountError
	)

	switch {
	case errors.Is(err, checkout.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.As(err, &notFound):
		writeError(w, r, http.StatusNotFound, notFound.Error())
	case errors.As(err, &codeErr):
		writeError(w, r, http.StatusBadRequest, codeErr.Error())
	case errors.As(err, &excessive):
		writeError(w, r, http.StatusBadRequest, excessive.Error())
	case errors.Is(err, checkout.ErrInsufficientStock):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrEmptyItems):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		zctx.From(r.Context()).Error("checkout failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}
