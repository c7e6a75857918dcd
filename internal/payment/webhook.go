package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const SignatureHeader = "Stripe-Signature"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMissingSecret    = errors.New("webhook secret not configured")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks the signature header against the raw body and decodes the event. The
// returned error wraps ErrInvalidSignature when the body cannot be trusted, and
// ErrMalformedEvent when a trusted checkout event lacks its session.
func (v *Verifier) Verify(payload []byte, signature string) (Event, error) {
	if v.secret == "" {
		return nil, ErrMissingSecret
	}
	if signature == "" {
		return nil, fmt.Errorf("%w: missing %s header", ErrInvalidSignature, SignatureHeader)
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	return decode(evt)
}

func decode(evt stripe.Event) (Event, error) {
	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		s, err := decodeSession(evt)
		if err != nil {
			return nil, err
		}
		return CheckoutCompleted{
			EventID:           evt.ID,
			SessionID:         s.ID,
			PaymentStatus:     string(s.PaymentStatus),
			AmountTotal:       s.AmountTotal,
			ClientReferenceID: s.ClientReferenceID,
		}, nil
	case stripe.EventTypeCheckoutSessionExpired:
		s, err := decodeSession(evt)
		if err != nil {
			return nil, err
		}
		return CheckoutExpired{EventID: evt.ID, SessionID: s.ID}, nil
	default:
		return Ignored{EventID: evt.ID, Kind: string(evt.Type)}, nil
	}
}

func decodeSession(evt stripe.Event) (*stripe.CheckoutSession, error) {
	if evt.Data == nil {
		return nil, fmt.Errorf("%w: %s %s has no data", ErrMalformedEvent, evt.Type, evt.ID)
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrMalformedEvent, evt.Type, evt.ID, err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("%w: %s %s has no session id", ErrMalformedEvent, evt.Type, evt.ID)
	}
	return &s, nil
}
