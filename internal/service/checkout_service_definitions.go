package service

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/fjod/era_store/internal/anomaly"
	"github.com/fjod/era_store/internal/domain"
	"github.com/fjod/era_store/internal/payment"
	"github.com/fjod/era_store/internal/profile"
	"github.com/fjod/era_store/internal/repository"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	CreatePaidOrder(ctx context.Context, order *domain.Order) error
	MarkPaidBySession(ctx context.Context, sessionID string) (bool, error)
	CancelPendingBySession(ctx context.Context, sessionID string) (bool, error)
	LatestOrderByUser(ctx context.Context, userID string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string, limit int) ([]*domain.Order, error)
	RecordUnmatchedPayment(ctx context.Context, p repository.UnmatchedPayment) error
}

type ProfileStore interface {
	Lookup(ctx context.Context, userID string) (*profile.Profile, error)
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
}

type EventVerifier interface {
	Verify(payload []byte, signature string) (payment.Event, error)
}

type Config struct {
	Currency        string
	OrderPrefix     string
	SuccessURL      string
	CancelURL       string
	ProviderTimeout time.Duration
	HistoryLimit    int
}

const maxNumberAttempts = 5

type CheckoutServiceImpl struct {
	orders   OrderStore
	provider payment.Provider
	profiles ProfileStore
	verifier EventVerifier
	sink     anomaly.Sink
	cfg      Config
	logger   zerolog.Logger
	sfg      singleflight.Group

	now        func() time.Time
	randSuffix func() int
}

func NewCheckoutService(
	orders OrderStore,
	provider payment.Provider,
	profiles ProfileStore,
	verifier EventVerifier,
	sink anomaly.Sink,
	cfg Config,
	logger zerolog.Logger,
) *CheckoutServiceImpl {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return &CheckoutServiceImpl{
		orders:     orders,
		provider:   provider,
		profiles:   profiles,
		verifier:   verifier,
		sink:       sink,
		cfg:        cfg,
		logger:     logger.With().Str("component", "checkout").Logger(),
		now:        time.Now,
		randSuffix: func() int { return rand.IntN(10000) },
	}
}

func (s *CheckoutServiceImpl) withProviderTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ProviderTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.ProviderTimeout)
}
