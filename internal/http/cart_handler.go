package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amarnathnag/fitnect-cart/internal/cart"
	"github.com/amarnathnag/fitnect-cart/internal/catalog"
	"github.com/amarnathnag/fitnect-cart/internal/domain"
	"github.com/amarnathnag/fitnect-cart/internal/pricing"
	"github.com/amarnathnag/fitnect-cart/internal/session"
)

// CartController is the slice of the cart controller the handlers use.
type CartController interface {
	GetCart(ctx context.Context, sess session.Session) (*domain.Cart, error)
	AddToCart(ctx context.Context, sess session.Session, product domain.ProductSnapshot) error
	UpdateQuantity(ctx context.Context, sess session.Session, productID string, quantity int) error
	RemoveFromCart(ctx context.Context, sess session.Session, productID string) error
	Clear(ctx context.Context, sess session.Session) error
	MergeGuestCart(ctx context.Context, sess session.Session) error
}

type CartHandler struct {
	controller CartController
	catalog    catalog.RepoInterface
	timeout    time.Duration
}

func NewCartHandler(controller CartController, cat catalog.RepoInterface, timeout time.Duration) *CartHandler {
	return &CartHandler{
		controller: controller,
		catalog:    cat,
		timeout:    timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Entries    []domain.CartEntry `json:"entries"`
	CartTotal  float64            `json:"cart_total"`
	CartCount  int                `json:"cart_count"`
	TotalLabel string             `json:"total_label"`
}

func cartResponse(c *domain.Cart) CartResponseDTO {
	entries := c.Entries
	if entries == nil {
		entries = []domain.CartEntry{}
	}
	total := pricing.CartTotal(entries)
	return CartResponseDTO{
		Entries:    entries,
		CartTotal:  total,
		CartCount:  pricing.CartCount(entries),
		TotalLabel: pricing.FormatPrice(total),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFromContext(r.Context())

	c, err := h.controller.GetCart(ctx, sess)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(c))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFromContext(r.Context())

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	if err := h.controller.AddToCart(ctx, sess, product.Snapshot()); err != nil {
		handleDomainError(w, err)
		return
	}

	c, err := h.controller.GetCart(ctx, sess)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, cartResponse(c))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFromContext(r.Context())

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Quantity < 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	if err := h.controller.UpdateQuantity(ctx, sess, productID, req.Quantity); err != nil {
		handleDomainError(w, err)
		return
	}

	c, err := h.controller.GetCart(ctx, sess)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(c))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFromContext(r.Context())

	productID := chi.URLParam(r, "product_id")
	if err := h.controller.RemoveFromCart(ctx, sess, productID); err != nil {
		handleDomainError(w, err)
		return
	}

	c, err := h.controller.GetCart(ctx, sess)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(c))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFromContext(r.Context())

	if err := h.controller.Clear(ctx, sess); err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(&domain.Cart{UserID: sess.Key()}))
}

// MergeCart folds the guest cart named by X-Guest-ID into the logged-in
// user's cart. The client calls this once after login, deliberately.
func (h *CartHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFromContext(r.Context())
	if !sess.Authenticated() {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "please log in to merge your cart")
		return
	}
	if sess.GuestID == "" {
		respondError(w, http.StatusBadRequest, "missing_guest_id", "X-Guest-ID header is required")
		return
	}

	if err := h.controller.MergeGuestCart(ctx, sess); err != nil {
		handleDomainError(w, err)
		return
	}

	c, err := h.controller.GetCart(ctx, sess)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(c))
}

var _ CartController = (*cart.Controller)(nil)
