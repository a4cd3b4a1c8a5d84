package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amarnathnag/fitnect-cart/internal/catalog"
	"github.com/amarnathnag/fitnect-cart/internal/domain"
	"github.com/amarnathnag/fitnect-cart/internal/session"
)

type mockController struct {
	carts map[string]*domain.Cart

	addErr    error
	updateErr error
	removeErr error
	clearErr  error
	mergeErr  error

	addCalls    []domain.ProductSnapshot
	updateCalls []struct {
		ProductID string
		Quantity  int
	}
	removedIDs []string
	cleared    []string
	merged     []session.Session
}

func newMockController() *mockController {
	return &mockController{carts: make(map[string]*domain.Cart)}
}

func (m *mockController) cart(key string) *domain.Cart {
	if c, ok := m.carts[key]; ok {
		return c
	}
	return &domain.Cart{UserID: key, Entries: []domain.CartEntry{}}
}

func (m *mockController) GetCart(_ context.Context, sess session.Session) (*domain.Cart, error) {
	return m.cart(sess.Key()), nil
}

func (m *mockController) AddToCart(_ context.Context, _ session.Session, product domain.ProductSnapshot) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.addCalls = append(m.addCalls, product)
	return nil
}

func (m *mockController) UpdateQuantity(_ context.Context, _ session.Session, productID string, quantity int) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updateCalls = append(m.updateCalls, struct {
		ProductID string
		Quantity  int
	}{productID, quantity})
	return nil
}

func (m *mockController) RemoveFromCart(_ context.Context, _ session.Session, productID string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removedIDs = append(m.removedIDs, productID)
	return nil
}

func (m *mockController) Clear(_ context.Context, sess session.Session) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared = append(m.cleared, sess.Key())
	return nil
}

func (m *mockController) MergeGuestCart(_ context.Context, sess session.Session) error {
	if m.mergeErr != nil {
		return m.mergeErr
	}
	m.merged = append(m.merged, sess)
	return nil
}

type mockCatalogRepo struct {
	products map[string]*catalog.Product
}

func (m *mockCatalogRepo) ListProducts(context.Context) ([]*catalog.Product, error) {
	out := make([]*catalog.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockCatalogRepo) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *mockCatalogRepo) Close() error               { return nil }
func (m *mockCatalogRepo) RunMigrations(string) error { return nil }

func withSession(r *http.Request, sess session.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), "session", sess))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func testProduct() *catalog.Product {
	return &catalog.Product{
		ID:            "prod-yoga-mat",
		Name:          "Yoga Mat",
		Brand:         "FitNect",
		UnitPrice:     799,
		StockQuantity: 12,
	}
}

const testTimeout = 5 * time.Second

func TestGetCart_ReturnsEmptyCartShape(t *testing.T) {
	ctrl := newMockController()
	handler := NewCartHandler(ctrl, &mockCatalogRepo{}, testTimeout)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil), session.Guest("g-1"))
	rec := httptest.NewRecorder()
	handler.GetCart(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CartResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Entries)
	assert.Empty(t, resp.Entries)
	assert.Equal(t, 0.0, resp.CartTotal)
	assert.Equal(t, "0.00", resp.TotalLabel)
}

func TestAddItem_ResolvesProductFromCatalog(t *testing.T) {
	ctrl := newMockController()
	cat := &mockCatalogRepo{products: map[string]*catalog.Product{"prod-yoga-mat": testProduct()}}
	handler := NewCartHandler(ctrl, cat, testTimeout)

	body := bytes.NewBufferString(`{"product_id":"prod-yoga-mat"}`)
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body), session.Guest("g-1"))
	rec := httptest.NewRecorder()
	handler.AddItem(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, ctrl.addCalls, 1)
	assert.Equal(t, "prod-yoga-mat", ctrl.addCalls[0].ID)
	assert.Equal(t, 799.0, ctrl.addCalls[0].UnitPrice)
}

func TestAddItem_UnknownProductIs404(t *testing.T) {
	ctrl := newMockController()
	handler := NewCartHandler(ctrl, &mockCatalogRepo{}, testTimeout)

	body := bytes.NewBufferString(`{"product_id":"prod-nope"}`)
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body), session.Guest("g-1"))
	rec := httptest.NewRecorder()
	handler.AddItem(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, ctrl.addCalls)
}

func TestAddItem_RejectsMissingProductID(t *testing.T) {
	handler := NewCartHandler(newMockController(), &mockCatalogRepo{}, testTimeout)

	body := bytes.NewBufferString(`{}`)
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body), session.Guest("g-1"))
	rec := httptest.NewRecorder()
	handler.AddItem(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_product_id", resp.Code)
}

func TestAddItem_RejectsMalformedJSON(t *testing.T) {
	handler := NewCartHandler(newMockController(), &mockCatalogRepo{}, testTimeout)

	body := bytes.NewBufferString(`{"product_id":`)
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", body), session.Guest("g-1"))
	rec := httptest.NewRecorder()
	handler.AddItem(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateQuantity_PassesThrough(t *testing.T) {
	ctrl := newMockController()
	handler := NewCartHandler(ctrl, &mockCatalogRepo{}, testTimeout)

	body := bytes.NewBufferString(`{"quantity":3}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/prod-yoga-mat", body)
	req = withSession(req, session.Guest("g-1"))
	req = withURLParam(req, "product_id", "prod-yoga-mat")
	rec := httptest.NewRecorder()
	handler.UpdateQuantity(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ctrl.updateCalls, 1)
	assert.Equal(t, "prod-yoga-mat", ctrl.updateCalls[0].ProductID)
	assert.Equal(t, 3, ctrl.updateCalls[0].Quantity)
}

func TestUpdateQuantity_RejectsOutOfRange(t *testing.T) {
	for _, quantity := range []int{-1, 100} {
		ctrl := newMockController()
		handler := NewCartHandler(ctrl, &mockCatalogRepo{}, testTimeout)

		body, _ := json.Marshal(UpdateQuantityRequestDTO{Quantity: quantity})
		req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/prod-yoga-mat", bytes.NewReader(body))
		req = withSession(req, session.Guest("g-1"))
		req = withURLParam(req, "product_id", "prod-yoga-mat")
		rec := httptest.NewRecorder()
		handler.UpdateQuantity(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code, "quantity %d", quantity)
		assert.Empty(t, ctrl.updateCalls)
	}
}

func TestRemoveItem_PassesProductID(t *testing.T) {
	ctrl := newMockController()
	handler := NewCartHandler(ctrl, &mockCatalogRepo{}, testTimeout)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/prod-yoga-mat", nil)
	req = withSession(req, session.Guest("g-1"))
	req = withURLParam(req, "product_id", "prod-yoga-mat")
	rec := httptest.NewRecorder()
	handler.RemoveItem(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"prod-yoga-mat"}, ctrl.removedIDs)
}

func TestClearCart_RespondsWithEmptyCart(t *testing.T) {
	ctrl := newMockController()
	handler := NewCartHandler(ctrl, &mockCatalogRepo{}, testTimeout)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/clear", nil), session.Authenticated("user-1"))
	rec := httptest.NewRecorder()
	handler.ClearCart(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"user-1"}, ctrl.cleared)

	var resp CartResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Entries)
}

func TestMergeCart_RequiresLogin(t *testing.T) {
	ctrl := newMockController()
	handler := NewCartHandler(ctrl, &mockCatalogRepo{}, testTimeout)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil), session.Guest("g-1"))
	rec := httptest.NewRecorder()
	handler.MergeCart(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, ctrl.merged)
}

func TestMergeCart_RequiresGuestID(t *testing.T) {
	ctrl := newMockController()
	handler := NewCartHandler(ctrl, &mockCatalogRepo{}, testTimeout)

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil), session.Authenticated("user-1"))
	rec := httptest.NewRecorder()
	handler.MergeCart(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ctrl.merged)
}

func TestMergeCart_ForwardsBothIDs(t *testing.T) {
	ctrl := newMockController()
	handler := NewCartHandler(ctrl, &mockCatalogRepo{}, testTimeout)

	sess := session.Session{UserID: "user-1", GuestID: "g-1"}
	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", nil), sess)
	rec := httptest.NewRecorder()
	handler.MergeCart(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ctrl.merged, 1)
	assert.Equal(t, sess, ctrl.merged[0])
}

func TestSessionMiddleware_AssignsGuestID(t *testing.T) {
	var captured session.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = sessionFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	rec := httptest.NewRecorder()
	SessionMiddleware(next).ServeHTTP(rec, req)

	assert.False(t, captured.Authenticated())
	assert.NotEmpty(t, captured.GuestID)
	assert.Equal(t, captured.GuestID, rec.Header().Get("X-Guest-ID"))
}

func TestSessionMiddleware_KeepsExistingIDs(t *testing.T) {
	var captured session.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = sessionFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-Guest-ID", "g-1")
	rec := httptest.NewRecorder()
	SessionMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, "user-1", captured.UserID)
	assert.Equal(t, "g-1", captured.GuestID)
}
