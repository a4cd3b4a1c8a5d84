// Package coupon validates discount codes against the static coupon
// table and tracks the applied discount for one checkout session.
package coupon

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/amarnathnag/fitnect-cart/internal/domain"
	"github.com/amarnathnag/fitnect-cart/internal/notify"
	"github.com/amarnathnag/fitnect-cart/internal/pricing"
)

var (
	ErrEmptyCode         = errors.New("coupon code is empty")
	ErrInvalidCoupon     = errors.New("invalid coupon code")
	ErrBelowMinimumOrder = errors.New("order total below coupon minimum")
)

type State string

const (
	StateNoCoupon State = "no_coupon"
	StateApplying State = "applying"
	StateApplied  State = "applied"
	StateRejected State = "rejected"
)

// Coupons available to every shopper. The table is static; codes are
// stored uppercase.
var table = map[string]domain.Coupon{
	"HEALTH20":   {Code: "HEALTH20", DiscountValue: 20, DiscountType: domain.DiscountPercentage, MinimumOrderAmount: 1000},
	"FLAT50":     {Code: "FLAT50", DiscountValue: 50, DiscountType: domain.DiscountFixed, MinimumOrderAmount: 200},
	"WELLNESS10": {Code: "WELLNESS10", DiscountValue: 10, DiscountType: domain.DiscountPercentage, MinimumOrderAmount: 500},
	"FIRSTBUY":   {Code: "FIRSTBUY", DiscountValue: 100, DiscountType: domain.DiscountFixed, MinimumOrderAmount: 999},
}

// Lookup returns the coupon for a (case-insensitive) code.
func Lookup(code string) (domain.Coupon, bool) {
	c, ok := table[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// Applied is the session-local applied state; it is never persisted
// server-side.
type Applied struct {
	Code           string  `json:"code"`
	DiscountAmount float64 `json:"discount_amount"`
}

// Engine runs the NoCoupon -> Applying -> Applied/Rejected machine for
// one checkout session. The mutex serializes apply against remove so a
// removal racing a reapplication cannot leave a stale discount behind.
type Engine struct {
	notifier notify.Notifier

	mu      sync.Mutex
	state   State
	applied Applied
}

func NewEngine(notifier notify.Notifier) *Engine {
	return &Engine{
		notifier: notifier,
		state:    StateNoCoupon,
	}
}

// Apply validates code against the table for the given cart subtotal. On
// success the engine moves to Applied and remembers the discount; any
// rejection leaves the previously applied state untouched.
func (e *Engine) Apply(code string, subtotal float64) (Applied, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		e.notifier.Error("Please enter a coupon code")
		return e.applied, ErrEmptyCode
	}

	prev := e.state
	e.state = StateApplying

	c, ok := table[normalized]
	if !ok {
		e.state = StateRejected
		e.notifier.Error("Invalid coupon code")
		// No mutation to discount state on rejection.
		e.restoreAfterRejection(prev)
		return e.applied, ErrInvalidCoupon
	}

	if subtotal < c.MinimumOrderAmount {
		e.state = StateRejected
		e.notifier.Error(fmt.Sprintf("Add items worth ₹%s more to use %s",
			pricing.FormatPrice(c.MinimumOrderAmount-subtotal), c.Code))
		e.restoreAfterRejection(prev)
		return e.applied, ErrBelowMinimumOrder
	}

	discount := c.DiscountValue
	if c.DiscountType == domain.DiscountPercentage {
		discount = pricing.Round2(subtotal * c.DiscountValue / 100)
	}

	e.state = StateApplied
	e.applied = Applied{Code: c.Code, DiscountAmount: discount}
	e.notifier.Success(fmt.Sprintf("Coupon %s applied, you saved ₹%s", c.Code, pricing.FormatPrice(discount)))
	return e.applied, nil
}

// Remove clears the applied coupon. Idempotent when nothing is applied.
func (e *Engine) Remove() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateNoCoupon && e.applied.Code == "" {
		return
	}

	e.state = StateNoCoupon
	e.applied = Applied{}
	e.notifier.Success("Coupon removed")
}

// Current returns the applied state, zero-valued when no coupon is on.
func (e *Engine) Current() Applied {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applied
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// FinalTotal applies the current discount to a cart total, never below
// zero.
func (e *Engine) FinalTotal(cartTotal float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return pricing.FinalTotal(cartTotal, e.applied.DiscountAmount)
}

// A rejected apply keeps whatever was applied before it; only the state
// marker reflects the rejection.
func (e *Engine) restoreAfterRejection(prev State) {
	if prev == StateApplied {
		e.state = StateApplied
	}
}
