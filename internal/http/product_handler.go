package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amarnathnag/fitnect-cart/internal/catalog"
)

type ProductHandler struct {
	catalog catalog.RepoInterface
	timeout time.Duration
}

func NewProductHandler(cat catalog.RepoInterface, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: cat,
		timeout: timeout,
	}
}

type ProductResponseDTO struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Brand         string   `json:"brand"`
	Description   string   `json:"description"`
	UnitPrice     float64  `json:"unit_price"`
	ImageURLs     []string `json:"image_urls"`
	StockQuantity int      `json:"stock_quantity"`
}

func productResponse(p *catalog.Product) ProductResponseDTO {
	images := p.ImageURLs
	if images == nil {
		images = []string{}
	}
	return ProductResponseDTO{
		ID:            p.ID,
		Name:          p.Name,
		Brand:         p.Brand,
		Description:   p.Description,
		UnitPrice:     p.UnitPrice,
		ImageURLs:     images,
		StockQuantity: p.StockQuantity,
	}
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	response := make([]ProductResponseDTO, 0, len(products))
	for _, p := range products {
		response = append(response, productResponse(p))
	}

	respondJSON(w, http.StatusOK, response)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	p, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, productResponse(p))
}
