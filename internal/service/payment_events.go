package service

import (
	"context"
	"errors"

	"github.com/fjod/era_store/internal/anomaly"
	"github.com/fjod/era_store/internal/payment"
	"github.com/fjod/era_store/internal/repository"
)

// Outcome is what a payment event did to the order store.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomePaid
	OutcomeAlreadyProcessed
	OutcomeUnmatched
	OutcomeCanceled
	OutcomeMalformed
	OutcomeFailed
	OutcomeAwaitingPayment
)

func (o Outcome) String() string {
	switch o {
	case OutcomePaid:
		return "paid"
	case OutcomeAlreadyProcessed:
		return "already_processed"
	case OutcomeUnmatched:
		return "unmatched"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeFailed:
		return "failed"
	case OutcomeAwaitingPayment:
		return "awaiting_payment"
	}
	return "ignored"
}

// ProcessWebhook verifies a raw provider notification and applies it. Only verification
// failures are returned; everything after a valid signature is acknowledged and surfaced
// through the anomaly sink instead.
func (s *CheckoutServiceImpl) ProcessWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	evt, err := s.verifier.Verify(payload, signature)
	if errors.Is(err, payment.ErrMalformedEvent) {
		s.sink.Report(ctx, anomaly.Anomaly{Kind: anomaly.KindMalformedEvent, Err: err})
		return OutcomeMalformed, nil
	}
	if err != nil {
		return OutcomeIgnored, err
	}
	return s.HandlePaymentEvent(ctx, evt), nil
}

func (s *CheckoutServiceImpl) HandlePaymentEvent(ctx context.Context, evt payment.Event) Outcome {
	switch e := evt.(type) {
	case payment.CheckoutCompleted:
		return s.handleCompleted(ctx, e)
	case payment.CheckoutExpired:
		return s.handleExpired(ctx, e)
	case payment.Ignored:
		s.logger.Debug().Str("event_id", e.EventID).Str("kind", e.Kind).Msg("ignoring payment event")
		return OutcomeIgnored
	default:
		return OutcomeIgnored
	}
}

func (s *CheckoutServiceImpl) handleCompleted(ctx context.Context, e payment.CheckoutCompleted) Outcome {
	log := s.logger.With().Str("event_id", e.EventID).Str("session_id", e.SessionID).Logger()

	if !e.Paid() {
		log.Info().Str("payment_status", e.PaymentStatus).Msg("checkout completed without payment, waiting for async confirmation")
		return OutcomeAwaitingPayment
	}

	changed, err := s.orders.MarkPaidBySession(ctx, e.SessionID)
	switch {
	case err == nil && changed:
		log.Info().Msg("order marked paid")
		return OutcomePaid
	case err == nil:
		log.Info().Msg("order already past pending, duplicate delivery")
		return OutcomeAlreadyProcessed
	case errors.Is(err, repository.ErrOrderNotFound):
		log.Warn().Msg("payment confirmed for session without order")
		s.sink.Report(ctx, anomaly.Anomaly{
			Kind:      anomaly.KindPaymentUnmatched,
			SessionID: e.SessionID,
			UserID:    e.ClientReferenceID,
		})
		errRecord := s.orders.RecordUnmatchedPayment(ctx, repository.UnmatchedPayment{
			SessionID:   e.SessionID,
			EventID:     e.EventID,
			AmountTotal: e.AmountTotal,
		})
		if errRecord != nil {
			log.Error().Err(errRecord).Msg("failed to record unmatched payment")
		}
		return OutcomeUnmatched
	default:
		s.sink.Report(ctx, anomaly.Anomaly{
			Kind:      anomaly.KindPaidUpdateFailed,
			SessionID: e.SessionID,
			UserID:    e.ClientReferenceID,
			Err:       err,
		})
		return OutcomeFailed
	}
}

func (s *CheckoutServiceImpl) handleExpired(ctx context.Context, e payment.CheckoutExpired) Outcome {
	log := s.logger.With().Str("event_id", e.EventID).Str("session_id", e.SessionID).Logger()

	changed, err := s.orders.CancelPendingBySession(ctx, e.SessionID)
	switch {
	case err == nil && changed:
		log.Info().Msg("order canceled, checkout session expired")
		return OutcomeCanceled
	case err == nil:
		return OutcomeAlreadyProcessed
	case errors.Is(err, repository.ErrOrderNotFound):
		log.Debug().Msg("expired session has no order")
		return OutcomeIgnored
	default:
		s.sink.Report(ctx, anomaly.Anomaly{
			Kind:      anomaly.KindCancelFailed,
			SessionID: e.SessionID,
			Err:       err,
		})
		return OutcomeFailed
	}
}
