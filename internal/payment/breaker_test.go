package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls int
	err   error
}

func (f *fakeProvider) CreateCheckoutSession(context.Context, SessionRequest) (*Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Session{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
}

func (f *fakeProvider) GetCheckoutSession(_ context.Context, id string) (*Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Session{ID: id, PaymentStatus: PaymentStatusPaid}, nil
}

func (f *fakeProvider) CreateCustomer(context.Context, CustomerRequest) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "cus_1", nil
}

func testSettings() BreakerSettings {
	s := DefaultBreakerSettings()
	s.FailureThreshold = 2
	s.Timeout = time.Hour
	return s
}

func TestBreaker_PassesThrough(t *testing.T) {
	next := &fakeProvider{}
	b := NewBreakerProvider(next, testSettings(), zerolog.Nop())

	s, err := b.CreateCheckoutSession(context.Background(), SessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", s.ID)

	id, err := b.CreateCustomer(context.Background(), CustomerRequest{UserID: "u", Email: "e"})
	require.NoError(t, err)
	assert.Equal(t, "cus_1", id)
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	next := &fakeProvider{err: errors.New("connection reset")}
	b := NewBreakerProvider(next, testSettings(), zerolog.Nop())

	for range 2 {
		_, err := b.GetCheckoutSession(context.Background(), "cs_1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrProviderUnavailable)
	}

	_, err := b.GetCheckoutSession(context.Background(), "cs_1")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 2, next.calls)
}

func TestBreaker_RejectionsDoNotTrip(t *testing.T) {
	next := &fakeProvider{err: &ProviderError{StatusCode: 400, Message: "Invalid currency"}}
	b := NewBreakerProvider(next, testSettings(), zerolog.Nop())

	for range 5 {
		_, err := b.CreateCheckoutSession(context.Background(), SessionRequest{})
		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "Invalid currency", ProviderMessage(err))
	}
	assert.Equal(t, 5, next.calls)
}
