// Package payment adapts the hosted checkout provider: session creation and lookup,
// customer provisioning and signed webhook events.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/era_store/internal/domain"
)

var ErrProviderUnavailable = errors.New("payment provider unavailable")

// Provider is the hosted checkout backend.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetCheckoutSession(ctx context.Context, id string) (*Session, error)
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
}

type SessionRequest struct {
	Items             []domain.LineItem
	Currency          string
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	CustomerID        string
	Metadata          map[string]string
}

const (
	PaymentStatusPaid              = "paid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
	SessionStatusExpired           = "expired"
)

type Session struct {
	ID                string
	URL               string
	Status            string
	PaymentStatus     string
	AmountTotal       int64
	Currency          string
	ClientReferenceID string
	Metadata          map[string]string
}

func (s *Session) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusNoPaymentRequired
}

func (s *Session) Expired() bool {
	return s.Status == SessionStatusExpired
}

type CustomerRequest struct {
	UserID string
	Email  string
}

// ProviderError is a request the provider answered with an error.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment provider error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("payment provider error %d: %s", e.StatusCode, e.Message)
}

// Rejected reports a 4xx answer, a problem with the request rather than the provider.
func (e *ProviderError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// ProviderMessage is the text shown to a client for a failed provider call.
func ProviderMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}
