package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/era_store/internal/payment"
	"github.com/fjod/era_store/internal/service"
	"github.com/rs/zerolog"
)

type CustomerCreator interface {
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
}

type CustomerHandler struct {
	customers CustomerCreator
	logger    zerolog.Logger
	timeout   time.Duration
}

func NewCustomerHandler(customers CustomerCreator, logger zerolog.Logger, timeout time.Duration) *CustomerHandler {
	return &CustomerHandler{
		customers: customers,
		logger:    logger,
		timeout:   timeout,
	}
}

type createCustomerRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type createCustomerResponse struct {
	CustomerID string `json:"customerId"`
}

// Create handles POST /api/stripe-customers
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	customerID, err := h.customers.CreateCustomer(ctx, req.UserID, req.Email)
	switch {
	case errors.Is(err, service.ErrMissingCustomerFields):
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	case errors.Is(err, payment.ErrProviderUnavailable):
		respondError(w, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "Payment provider is temporarily unavailable")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("failed to create provider customer")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create customer")
		return
	}

	respondJSON(w, http.StatusOK, createCustomerResponse{CustomerID: customerID})
}
