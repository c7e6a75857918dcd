package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/era_store/internal/cart"
	"github.com/fjod/era_store/internal/domain"
	"github.com/fjod/era_store/internal/payment"
	"github.com/fjod/era_store/internal/service"
	"github.com/rs/zerolog"
)

type CheckoutService interface {
	BuildSession(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutResult, error)
}

type CheckoutHandler struct {
	service CheckoutService
	carts   cart.Storage
	logger  zerolog.Logger
	timeout time.Duration
}

func NewCheckoutHandler(svc CheckoutService, carts cart.Storage, logger zerolog.Logger, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		carts:   carts,
		logger:  logger,
		timeout: timeout,
	}
}

// pointsToUse arrives from the browser untyped, so it is decoded loosely and normalised.
type checkoutRequest struct {
	Items             []domain.LineItem `json:"items"`
	UserID            string            `json:"userId"`
	ShippingAddressID string            `json:"shippingAddressId"`
	PointsToUse       *float64          `json:"pointsToUse"`
}

type checkoutResponse struct {
	URL           string `json:"url"`
	Payable       int64  `json:"payable"`
	PointsApplied int64  `json:"pointsApplied"`
	OrderNumber   string `json:"orderNumber,omitempty"`
}

// CreateSession handles POST /api/checkout
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	// The authenticated identity wins. The body may only repeat it or stand in when there is none.
	userID := getUserIDFromContext(r.Context())
	switch {
	case userID == "":
		userID = body.UserID
	case body.UserID != "" && body.UserID != userID:
		h.logger.Warn().Str("user_id", userID).Str("body_user_id", body.UserID).Msg("checkout user mismatch")
		respondError(w, http.StatusForbidden, "FORBIDDEN", "userId does not match the signed-in user")
		return
	}
	req := &domain.CheckoutRequest{
		Items:             body.Items,
		UserID:            userID,
		ShippingAddressID: body.ShippingAddressID,
	}
	if body.PointsToUse != nil {
		req.PointsToUse = domain.PointsFromInput(*body.PointsToUse)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.service.BuildSession(ctx, req)
	if err != nil {
		h.handleError(w, err, userID)
		return
	}

	if key := cartKey(r); key != "" {
		if err := h.carts.Delete(ctx, key); err != nil {
			h.logger.Warn().Err(err).Str("cart_key", key).Msg("failed to clear cart after checkout")
		}
	}

	respondJSON(w, http.StatusOK, checkoutResponse{
		URL:           result.URL,
		Payable:       result.Payable,
		PointsApplied: result.PointsApplied,
		OrderNumber:   result.OrderNumber,
	})
}

func (h *CheckoutHandler) handleError(w http.ResponseWriter, err error, userID string) {
	var providerErr *payment.ProviderError
	var sessionErr *service.SessionCreationError
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "EMPTY_CART", "Cart is empty")
	case errors.Is(err, domain.ErrInvalidItem):
		respondError(w, http.StatusBadRequest, "INVALID_ITEM", err.Error())
	case errors.Is(err, payment.ErrProviderUnavailable):
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("payment provider unavailable")
		respondError(w, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "Payment provider is temporarily unavailable")
	case errors.As(err, &providerErr) && providerErr.Rejected():
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("checkout session rejected by provider")
		respondError(w, http.StatusBadRequest, "PROVIDER_REJECTED", payment.ProviderMessage(err))
	case errors.As(err, &sessionErr):
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create checkout session")
		respondError(w, http.StatusInternalServerError, "CHECKOUT_FAILED", payment.ProviderMessage(sessionErr.Err))
	default:
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create checkout session")
		respondError(w, http.StatusInternalServerError, "CHECKOUT_FAILED", "Failed to create checkout session")
	}
}
