package http

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/amarnathnag/fitnect-cart/internal/domain"
	"github.com/amarnathnag/fitnect-cart/internal/order"
	"github.com/amarnathnag/fitnect-cart/internal/session"
)

var (
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
	phonePattern   = regexp.MustCompile(`^\d{10}$`)
)

// OrderPlacer is the slice of the order assembler the handler uses.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, sess session.Session, entries []domain.CartEntry, address domain.DeliveryAddress, couponDiscount float64) (*domain.Order, error)
}

type CheckoutHandler struct {
	assembler  OrderPlacer
	controller CartController
	registry   *CouponRegistry
	timeout    time.Duration
}

func NewCheckoutHandler(assembler OrderPlacer, controller CartController, registry *CouponRegistry, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		assembler:  assembler,
		controller: controller,
		registry:   registry,
		timeout:    timeout,
	}
}

type CheckoutRequestDTO struct {
	DeliveryAddress domain.DeliveryAddress `json:"delivery_address"`
}

func validateAddress(a domain.DeliveryAddress) (code, message string) {
	switch {
	case a.Street == "":
		return "missing_street", "street is required"
	case a.City == "":
		return "missing_city", "city is required"
	case a.State == "":
		return "missing_state", "state is required"
	case a.Pincode == "":
		return "missing_pincode", "pincode is required"
	case a.Phone == "":
		return "missing_phone", "phone is required"
	case !pincodePattern.MatchString(a.Pincode):
		return "invalid_pincode", "pincode must be 6 digits"
	case !phonePattern.MatchString(a.Phone):
		return "invalid_phone", "phone must be 10 digits"
	}
	return "", ""
}

func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFromContext(r.Context())
	if !sess.Authenticated() {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "please log in to place your order")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if code, message := validateAddress(req.DeliveryAddress); code != "" {
		respondError(w, http.StatusBadRequest, code, message)
		return
	}

	c, err := h.controller.GetCart(ctx, sess)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	engine := h.registry.EngineFor(sess.Key())
	discount := engine.Current().DiscountAmount

	placed, err := h.assembler.PlaceOrder(ctx, sess, c.Entries, req.DeliveryAddress, discount)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	// The coupon was consumed by this order.
	engine.Remove()

	respondJSON(w, http.StatusCreated, placed)
}

var _ OrderPlacer = (*order.Assembler)(nil)
