package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/era_store/internal/cart"
	"github.com/fjod/era_store/internal/catalog"
	"github.com/fjod/era_store/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

type CartHandler struct {
	storage  cart.Storage
	products ProductLookup
	logger   zerolog.Logger
	timeout  time.Duration
}

func NewCartHandler(storage cart.Storage, products ProductLookup, logger zerolog.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		storage:  storage,
		products: products,
		logger:   logger,
		timeout:  timeout,
	}
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int64  `json:"quantity"`
}

type cartResponse struct {
	Items        []domain.LineItem `json:"items"`
	Subtotal     int64             `json:"subtotal"`
	PointsToEarn int64             `json:"pointsToEarn"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	items := c.Items()
	if items == nil {
		items = []domain.LineItem{}
	}
	return cartResponse{
		Items:        items,
		Subtotal:     c.Subtotal(),
		PointsToEarn: c.PointsToEarn(),
	}
}

func requireCartKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := cartKey(r)
	if key == "" {
		respondError(w, http.StatusBadRequest, "MISSING_CART_ID", "cart id or user id is required")
		return "", false
	}
	return key, true
}

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	key, ok := requireCartKey(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, http.StatusOK, toCartResponse(cart.Open(ctx, key, h.storage, h.logger)))
}

// AddItem handles POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	key, ok := requireCartKey(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "productId is required")
		return
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "INVALID_QUANTITY", "quantity must not be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.products.GetProduct(ctx, req.ProductID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("product_id", req.ProductID).Msg("failed to look up product")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add item")
		return
	}

	c := cart.Open(ctx, key, h.storage, h.logger)
	c.AddItem(ctx, cart.Product{ID: product.ID, Name: product.Name, Price: product.Price},
		cart.Options{Variant: req.Size, Quantity: req.Quantity})

	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// RemoveItem handles DELETE /api/cart/items/{productId}?size=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	key, ok := requireCartKey(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productId")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "productId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c := cart.Open(ctx, key, h.storage, h.logger)
	c.RemoveItem(ctx, productID, r.URL.Query().Get("size"))

	respondJSON(w, http.StatusOK, toCartResponse(c))
}

// Clear handles DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	key, ok := requireCartKey(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c := cart.Open(ctx, key, h.storage, h.logger)
	c.Clear(ctx)

	respondJSON(w, http.StatusOK, toCartResponse(c))
}
