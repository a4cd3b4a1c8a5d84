package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/amarnathnag/fitnect-cart/internal/cart"
	"github.com/amarnathnag/fitnect-cart/internal/catalog"
	"github.com/amarnathnag/fitnect-cart/internal/coupon"
	"github.com/amarnathnag/fitnect-cart/internal/order"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleDomainError converts core errors to HTTP status codes. Unknown
// errors stay a generic 500 so internals never leak to the client.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidProduct):
		respondError(w, http.StatusBadRequest, "invalid_product", "product is missing or has no id")
	case errors.Is(err, cart.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, "invalid_argument", "invalid cart operation arguments")
	case errors.Is(err, cart.ErrEntryNotFound):
		respondError(w, http.StatusNotFound, "not_found", "item not found in cart")
	case errors.Is(err, cart.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "not_found", "cart not found")
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "not_found", "product not found")
	case errors.Is(err, coupon.ErrEmptyCode):
		respondError(w, http.StatusBadRequest, "empty_coupon", "coupon code is required")
	case errors.Is(err, coupon.ErrInvalidCoupon):
		respondError(w, http.StatusBadRequest, "invalid_coupon", "invalid coupon code")
	case errors.Is(err, coupon.ErrBelowMinimumOrder):
		respondError(w, http.StatusUnprocessableEntity, "below_minimum_order", "cart total is below the coupon minimum")
	case errors.Is(err, order.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated", "please log in to continue")
	case errors.Is(err, order.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, cart.ErrTimeout):
		respondError(w, http.StatusGatewayTimeout, "timeout", "the request timed out")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
