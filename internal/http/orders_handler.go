package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/amarnathnag/fitnect-cart/internal/domain"
	"github.com/amarnathnag/fitnect-cart/internal/order"
)

type OrdersHandler struct {
	repo    order.OrderRepository
	timeout time.Duration
}

func NewOrdersHandler(repo order.OrderRepository, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		repo:    repo,
		timeout: timeout,
	}
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFromContext(r.Context())
	if !sess.Authenticated() {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "please log in to view your orders")
		return
	}

	orders, err := h.repo.ListOrdersByUserID(ctx, sess.UserID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	if orders == nil {
		orders = []*domain.Order{} // never encode null for an empty history
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFromContext(r.Context())
	if !sess.Authenticated() {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "please log in to view your orders")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a valid UUID")
		return
	}

	fetched, err := h.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	if fetched.UserID != sess.UserID {
		// Do not reveal that the order exists for someone else.
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}

	respondJSON(w, http.StatusOK, fetched)
}
