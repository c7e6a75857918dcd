package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fjod/era_store/internal/payment"
	"github.com/fjod/era_store/internal/service"
	"github.com/rs/zerolog"
)

// maxWebhookBodyBytes matches the largest event payload the provider documents.
const maxWebhookBodyBytes = 65536

type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, payload []byte, signature string) (service.Outcome, error)
}

type WebhookHandler struct {
	processor WebhookProcessor
	logger    zerolog.Logger
	timeout   time.Duration
}

func NewWebhookHandler(processor WebhookProcessor, logger zerolog.Logger, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger,
		timeout:   timeout,
	}
}

// Receive handles POST /api/stripe-webhook. Once the signature is verified the provider
// always gets 200, persistence problems are reported as anomalies instead.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Failed to read request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	outcome, err := h.processor.ProcessWebhook(ctx, payload, r.Header.Get(payment.SignatureHeader))
	switch {
	case errors.Is(err, payment.ErrMissingSecret):
		h.logger.Error().Err(err).Msg("webhook secret is not configured")
		respondError(w, http.StatusInternalServerError, "WEBHOOK_NOT_CONFIGURED", "Webhook secret not configured")
		return
	case err != nil:
		h.logger.Warn().Err(err).Msg("webhook signature verification failed")
		respondError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "Webhook signature verification failed")
		return
	}

	h.logger.Debug().Str("outcome", outcome.String()).Msg("webhook processed")
	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
