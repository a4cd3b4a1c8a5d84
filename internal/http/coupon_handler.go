package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/amarnathnag/fitnect-cart/internal/coupon"
	"github.com/amarnathnag/fitnect-cart/internal/notify"
	"github.com/amarnathnag/fitnect-cart/internal/pricing"
)

const (
	// Engines idle past this are dropped; session middleware mints a
	// fresh guest id per cookie-less request, so the map must not grow
	// with every anonymous hit.
	engineIdleTTL    = 30 * time.Minute
	engineSweepEvery = time.Minute
)

// CouponRegistry keeps one coupon engine per session key. Applied coupon
// state is session-local and never persisted server-side; engines are
// evicted after engineIdleTTL without use.
type CouponRegistry struct {
	notifier notify.Notifier

	mu        sync.Mutex
	engines   map[string]*engineEntry
	lastSweep time.Time
}

type engineEntry struct {
	engine   *coupon.Engine
	lastSeen time.Time
}

func NewCouponRegistry(notifier notify.Notifier) *CouponRegistry {
	return &CouponRegistry{
		notifier: notifier,
		engines:  make(map[string]*engineEntry),
	}
}

func (r *CouponRegistry) EngineFor(sessionKey string) *coupon.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.sweepLocked(now)

	entry, ok := r.engines[sessionKey]
	if !ok {
		entry = &engineEntry{engine: coupon.NewEngine(r.notifier)}
		r.engines[sessionKey] = entry
	}
	entry.lastSeen = now
	return entry.engine
}

// sweepLocked drops idle engines, at most once per engineSweepEvery.
// Callers hold r.mu.
func (r *CouponRegistry) sweepLocked(now time.Time) {
	if now.Sub(r.lastSweep) < engineSweepEvery {
		return
	}
	r.lastSweep = now

	for key, entry := range r.engines {
		if now.Sub(entry.lastSeen) > engineIdleTTL {
			delete(r.engines, key)
		}
	}
}

type CouponHandler struct {
	controller CartController
	registry   *CouponRegistry
	timeout    time.Duration
}

func NewCouponHandler(controller CartController, registry *CouponRegistry, timeout time.Duration) *CouponHandler {
	return &CouponHandler{
		controller: controller,
		registry:   registry,
		timeout:    timeout,
	}
}

type ApplyCouponRequestDTO struct {
	Code string `json:"code"`
}

type CouponResponseDTO struct {
	AppliedCode    string  `json:"applied_code,omitempty"`
	DiscountAmount float64 `json:"discount_amount"`
	CartTotal      float64 `json:"cart_total"`
	FinalTotal     float64 `json:"final_total"`
}

func (h *CouponHandler) Apply(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFromContext(r.Context())

	var req ApplyCouponRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	c, err := h.controller.GetCart(ctx, sess)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	subtotal := pricing.CartTotal(c.Entries)

	engine := h.registry.EngineFor(sess.Key())
	applied, err := engine.Apply(req.Code, subtotal)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CouponResponseDTO{
		AppliedCode:    applied.Code,
		DiscountAmount: applied.DiscountAmount,
		CartTotal:      subtotal,
		FinalTotal:     pricing.FinalTotal(subtotal, applied.DiscountAmount),
	})
}

func (h *CouponHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := sessionFromContext(r.Context())

	engine := h.registry.EngineFor(sess.Key())
	engine.Remove()

	c, err := h.controller.GetCart(ctx, sess)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	subtotal := pricing.CartTotal(c.Entries)

	respondJSON(w, http.StatusOK, CouponResponseDTO{
		DiscountAmount: 0,
		CartTotal:      subtotal,
		FinalTotal:     subtotal,
	})
}
