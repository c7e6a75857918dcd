package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:             "payment-provider",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerProvider stops calling the provider after consecutive failures. Requests the
// provider rejected with a 4xx do not count as failures.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerProvider(next Provider, s BreakerSettings, logger zerolog.Logger) *BreakerProvider {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var pe *ProviderError
			return errors.As(err, &pe) && pe.Rejected()
		},
	})
	return &BreakerProvider{next: next, cb: cb}
}

func execute[T any](cb *gobreaker.CircuitBreaker[any], fn func() (T, error)) (T, error) {
	var zero T
	v, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func (b *BreakerProvider) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	return execute(b.cb, func() (*Session, error) {
		return b.next.CreateCheckoutSession(ctx, req)
	})
}

func (b *BreakerProvider) GetCheckoutSession(ctx context.Context, id string) (*Session, error) {
	return execute(b.cb, func() (*Session, error) {
		return b.next.GetCheckoutSession(ctx, id)
	})
}

func (b *BreakerProvider) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	return execute(b.cb, func() (string, error) {
		return b.next.CreateCustomer(ctx, req)
	})
}
