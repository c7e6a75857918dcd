package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/era_store/internal/catalog"
	"github.com/rs/zerolog"
)

type ProductLister interface {
	ListProducts(ctx context.Context, category string) ([]*catalog.Product, error)
}

type ProductHandler struct {
	products ProductLister
	logger   zerolog.Logger
	timeout  time.Duration
}

func NewProductHandler(products ProductLister, logger zerolog.Logger, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		products: products,
		logger:   logger,
		timeout:  timeout,
	}
}

type productsResponse struct {
	Products []*catalog.Product `json:"products"`
}

// List handles GET /api/products?category=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.products.ListProducts(ctx, r.URL.Query().Get("category"))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list products")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list products")
		return
	}
	if products == nil {
		products = []*catalog.Product{}
	}

	respondJSON(w, http.StatusOK, productsResponse{Products: products})
}
