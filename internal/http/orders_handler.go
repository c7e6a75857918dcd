package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/era_store/internal/domain"
	"github.com/fjod/era_store/internal/repository"
	"github.com/rs/zerolog"
)

type OrderReader interface {
	LatestOrder(ctx context.Context, userID string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderReader
	logger  zerolog.Logger
	timeout time.Duration
}

func NewOrdersHandler(orders OrderReader, logger zerolog.Logger, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		logger:  logger,
		timeout: timeout,
	}
}

type ordersResponse struct {
	Orders []*domain.Order `json:"orders"`
}

// GetLatest handles GET /api/orders/latest. A 404 right after checkout is expected while the
// payment event is still in flight.
func (h *OrdersHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "user not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.LatestOrder(ctx, userID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to get latest order")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get latest order")
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// List handles GET /api/orders
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "user not authenticated")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListOrders(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list orders")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list orders")
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	respondJSON(w, http.StatusOK, ordersResponse{Orders: orders})
}
