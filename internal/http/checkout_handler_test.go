package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amarnathnag/fitnect-cart/internal/domain"
	"github.com/amarnathnag/fitnect-cart/internal/notify"
	"github.com/amarnathnag/fitnect-cart/internal/session"
)

type mockPlacer struct {
	err error

	lastEntries  []domain.CartEntry
	lastAddress  domain.DeliveryAddress
	lastDiscount float64
	calls        int
}

func (m *mockPlacer) PlaceOrder(_ context.Context, sess session.Session, entries []domain.CartEntry, address domain.DeliveryAddress, couponDiscount float64) (*domain.Order, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	m.lastEntries = entries
	m.lastAddress = address
	m.lastDiscount = couponDiscount
	return &domain.Order{
		ID:          uuid.New(),
		UserID:      sess.UserID,
		Status:      domain.OrderStatusPending,
		CreatedAt:   time.Now(),
		TotalAmount: 0,
	}, nil
}

func validAddress() domain.DeliveryAddress {
	return domain.DeliveryAddress{
		Street:  "12 MG Road",
		City:    "Bengaluru",
		State:   "Karnataka",
		Pincode: "560001",
		Phone:   "9876543210",
	}
}

func checkoutBody(t *testing.T, address domain.DeliveryAddress) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(CheckoutRequestDTO{DeliveryAddress: address})
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func cartWith(key string, price float64, qty int) map[string]*domain.Cart {
	return map[string]*domain.Cart{
		key: {
			UserID: key,
			Entries: []domain.CartEntry{
				{
					EntryID:  "e1",
					Product:  domain.ProductSnapshot{ID: "prod-whey-1kg", Name: "Whey", UnitPrice: price},
					Quantity: qty,
				},
			},
		},
	}
}

func TestPlaceOrder_RequiresLogin(t *testing.T) {
	placer := &mockPlacer{}
	handler := NewCheckoutHandler(placer, newMockController(), NewCouponRegistry(notify.Discard{}), testTimeout)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", checkoutBody(t, validAddress()))
	req = withSession(req, session.Guest("g-1"))
	rec := httptest.NewRecorder()
	handler.PlaceOrder(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, placer.calls)
}

func TestPlaceOrder_ValidatesAddress(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*domain.DeliveryAddress)
		errCode string
	}{
		{"missing street", func(a *domain.DeliveryAddress) { a.Street = "" }, "missing_street"},
		{"missing city", func(a *domain.DeliveryAddress) { a.City = "" }, "missing_city"},
		{"missing state", func(a *domain.DeliveryAddress) { a.State = "" }, "missing_state"},
		{"missing pincode", func(a *domain.DeliveryAddress) { a.Pincode = "" }, "missing_pincode"},
		{"missing phone", func(a *domain.DeliveryAddress) { a.Phone = "" }, "missing_phone"},
		{"short pincode", func(a *domain.DeliveryAddress) { a.Pincode = "5600" }, "invalid_pincode"},
		{"alpha pincode", func(a *domain.DeliveryAddress) { a.Pincode = "56000a" }, "invalid_pincode"},
		{"short phone", func(a *domain.DeliveryAddress) { a.Phone = "98765" }, "invalid_phone"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			placer := &mockPlacer{}
			handler := NewCheckoutHandler(placer, newMockController(), NewCouponRegistry(notify.Discard{}), testTimeout)

			address := validAddress()
			tc.mutate(&address)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", checkoutBody(t, address))
			req = withSession(req, session.Authenticated("user-1"))
			rec := httptest.NewRecorder()
			handler.PlaceOrder(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.errCode, resp.Code)
			assert.Zero(t, placer.calls)
		})
	}
}

func TestPlaceOrder_ForwardsCartAndAddress(t *testing.T) {
	ctrl := newMockController()
	ctrl.carts = cartWith("user-1", 1499, 2)
	placer := &mockPlacer{}
	handler := NewCheckoutHandler(placer, ctrl, NewCouponRegistry(notify.Discard{}), testTimeout)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", checkoutBody(t, validAddress()))
	req = withSession(req, session.Authenticated("user-1"))
	rec := httptest.NewRecorder()
	handler.PlaceOrder(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, placer.lastEntries, 1)
	assert.Equal(t, 2, placer.lastEntries[0].Quantity)
	assert.Equal(t, validAddress(), placer.lastAddress)
	assert.Equal(t, 0.0, placer.lastDiscount)
}

func TestPlaceOrder_AppliesAndConsumesCoupon(t *testing.T) {
	ctrl := newMockController()
	ctrl.carts = cartWith("user-1", 1499, 1)
	placer := &mockPlacer{}
	registry := NewCouponRegistry(notify.Discard{})
	handler := NewCheckoutHandler(placer, ctrl, registry, testTimeout)

	engine := registry.EngineFor("user-1")
	_, err := engine.Apply("HEALTH20", 1499)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", checkoutBody(t, validAddress()))
	req = withSession(req, session.Authenticated("user-1"))
	rec := httptest.NewRecorder()
	handler.PlaceOrder(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 299.8, placer.lastDiscount)
	assert.Empty(t, engine.Current().Code, "coupon should be consumed by the order")
}

func TestPlaceOrder_KeepsCouponWhenOrderFails(t *testing.T) {
	ctrl := newMockController()
	ctrl.carts = cartWith("user-1", 1499, 1)
	placer := &mockPlacer{err: context.DeadlineExceeded}
	registry := NewCouponRegistry(notify.Discard{})
	handler := NewCheckoutHandler(placer, ctrl, registry, testTimeout)

	engine := registry.EngineFor("user-1")
	_, err := engine.Apply("HEALTH20", 1499)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", checkoutBody(t, validAddress()))
	req = withSession(req, session.Authenticated("user-1"))
	rec := httptest.NewRecorder()
	handler.PlaceOrder(rec, req)

	require.NotEqual(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "HEALTH20", engine.Current().Code)
}

func TestApplyCoupon_ReturnsDiscountedTotals(t *testing.T) {
	ctrl := newMockController()
	ctrl.carts = cartWith("g-1", 1499, 1)
	handler := NewCouponHandler(ctrl, NewCouponRegistry(notify.Discard{}), testTimeout)

	body := bytes.NewBufferString(`{"code":"health20"}`)
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/coupon/apply", body), session.Guest("g-1"))
	rec := httptest.NewRecorder()
	handler.Apply(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CouponResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "HEALTH20", resp.AppliedCode)
	assert.Equal(t, 299.8, resp.DiscountAmount)
	assert.Equal(t, 1499.0, resp.CartTotal)
	assert.Equal(t, 1199.2, resp.FinalTotal)
}

func TestApplyCoupon_BelowMinimumIs422(t *testing.T) {
	ctrl := newMockController()
	ctrl.carts = cartWith("g-1", 249, 1)
	handler := NewCouponHandler(ctrl, NewCouponRegistry(notify.Discard{}), testTimeout)

	body := bytes.NewBufferString(`{"code":"HEALTH20"}`)
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/coupon/apply", body), session.Guest("g-1"))
	rec := httptest.NewRecorder()
	handler.Apply(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "below_minimum_order", resp.Code)
}

func TestApplyCoupon_UnknownCodeIs400(t *testing.T) {
	ctrl := newMockController()
	ctrl.carts = cartWith("g-1", 1499, 1)
	handler := NewCouponHandler(ctrl, NewCouponRegistry(notify.Discard{}), testTimeout)

	body := bytes.NewBufferString(`{"code":"BOGUS99"}`)
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/coupon/apply", body), session.Guest("g-1"))
	rec := httptest.NewRecorder()
	handler.Apply(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveCoupon_RestoresFullTotal(t *testing.T) {
	ctrl := newMockController()
	ctrl.carts = cartWith("g-1", 1499, 1)
	registry := NewCouponRegistry(notify.Discard{})
	handler := NewCouponHandler(ctrl, registry, testTimeout)

	_, err := registry.EngineFor("g-1").Apply("HEALTH20", 1499)
	require.NoError(t, err)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/coupon/remove", nil), session.Guest("g-1"))
	rec := httptest.NewRecorder()
	handler.Remove(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CouponResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.AppliedCode)
	assert.Equal(t, 1499.0, resp.FinalTotal)
	assert.Empty(t, registry.EngineFor("g-1").Current().Code)
}

func TestCouponRegistry_IsolatesSessions(t *testing.T) {
	registry := NewCouponRegistry(notify.Discard{})

	_, err := registry.EngineFor("user-1").Apply("HEALTH20", 2000)
	require.NoError(t, err)

	assert.Empty(t, registry.EngineFor("user-2").Current().Code)
	assert.Equal(t, "HEALTH20", registry.EngineFor("user-1").Current().Code)
}

func TestCouponRegistry_EvictsIdleEngines(t *testing.T) {
	registry := NewCouponRegistry(notify.Discard{})

	_, err := registry.EngineFor("g-stale").Apply("HEALTH20", 2000)
	require.NoError(t, err)

	// Age the entry past the idle TTL and force the next call to sweep.
	registry.mu.Lock()
	registry.engines["g-stale"].lastSeen = time.Now().Add(-engineIdleTTL - time.Minute)
	registry.lastSweep = time.Time{}
	registry.mu.Unlock()

	registry.EngineFor("g-fresh")

	registry.mu.Lock()
	_, stale := registry.engines["g-stale"]
	total := len(registry.engines)
	registry.mu.Unlock()

	assert.False(t, stale, "idle engine must be evicted")
	assert.Equal(t, 1, total)
}

func TestCouponRegistry_SweepKeepsActiveEngines(t *testing.T) {
	registry := NewCouponRegistry(notify.Discard{})

	_, err := registry.EngineFor("user-1").Apply("HEALTH20", 2000)
	require.NoError(t, err)

	registry.mu.Lock()
	registry.lastSweep = time.Time{}
	registry.mu.Unlock()

	registry.EngineFor("user-2")

	assert.Equal(t, "HEALTH20", registry.EngineFor("user-1").Current().Code)
}
