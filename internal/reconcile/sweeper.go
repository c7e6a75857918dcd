// Package reconcile repairs orders whose payment state drifted from the provider: pending
// orders left behind by lost webhooks and confirmed payments that arrived before their order.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/era_store/internal/anomaly"
	"github.com/fjod/era_store/internal/domain"
	"github.com/fjod/era_store/internal/payment"
	"github.com/fjod/era_store/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Store interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error)
	MarkPaidBySession(ctx context.Context, sessionID string) (bool, error)
	CancelPendingBySession(ctx context.Context, sessionID string) (bool, error)
	ListUnmatchedPayments(ctx context.Context, limit int) ([]*repository.UnmatchedPayment, error)
	ResolveUnmatchedPayment(ctx context.Context, sessionID string) error
}

type SessionFetcher interface {
	GetCheckoutSession(ctx context.Context, id string) (*payment.Session, error)
}

type Recoverer interface {
	RecoverPaidOrder(ctx context.Context, session *payment.Session) (*domain.Order, error)
}

type Config struct {
	Interval   time.Duration
	PendingAge time.Duration
	BatchSize  int
}

type Sweeper struct {
	store     Store
	sessions  SessionFetcher
	recoverer Recoverer
	sink      anomaly.Sink
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time
}

func NewSweeper(store Store, sessions SessionFetcher, recoverer Recoverer, sink anomaly.Sink, cfg Config, logger zerolog.Logger) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Sweeper{
		store:     store,
		sessions:  sessions,
		recoverer: recoverer,
		sink:      sink,
		cfg:       cfg,
		logger:    logger.With().Str("component", "reconcile").Logger(),
		now:       time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one reconciliation pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.sweepStalePending(ctx)
	s.sweepUnmatchedPayments(ctx)
}

func (s *Sweeper) sweepStalePending(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.PendingAge)
	orders, err := s.store.ListStalePending(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list stale pending orders")
		return
	}

	for _, order := range orders {
		if ctx.Err() != nil {
			return
		}
		s.reconcilePending(ctx, order)
	}
}

func (s *Sweeper) reconcilePending(ctx context.Context, order *domain.Order) {
	session, err := s.sessions.GetCheckoutSession(ctx, order.StripeSessionID)
	if err != nil {
		s.report(ctx, anomaly.KindReconcileFailed, order, "fetch checkout session", err)
		return
	}

	switch {
	case session.Paid():
		changed, err := s.store.MarkPaidBySession(ctx, order.StripeSessionID)
		if err != nil {
			s.report(ctx, anomaly.KindReconcileFailed, order, "mark paid", err)
			return
		}
		if changed {
			s.report(ctx, anomaly.KindOrderRecovered, order, "pending order was paid", nil)
		}
	case session.Expired():
		if _, err := s.store.CancelPendingBySession(ctx, order.StripeSessionID); err != nil {
			s.report(ctx, anomaly.KindReconcileFailed, order, "cancel expired", err)
			return
		}
		s.logger.Info().Str("session_id", order.StripeSessionID).Msg("canceled pending order of expired session")
	default:
		s.report(ctx, anomaly.KindStalePending, order,
			fmt.Sprintf("session status=%s payment_status=%s", session.Status, session.PaymentStatus), nil)
	}
}

func (s *Sweeper) sweepUnmatchedPayments(ctx context.Context) {
	payments, err := s.store.ListUnmatchedPayments(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list unmatched payments")
		return
	}

	for _, p := range payments {
		if ctx.Err() != nil {
			return
		}
		if s.reconcileUnmatched(ctx, p) {
			if err := s.store.ResolveUnmatchedPayment(ctx, p.SessionID); err != nil {
				s.logger.Error().Err(err).Str("session_id", p.SessionID).Msg("failed to resolve unmatched payment")
			}
		}
	}
}

// reconcileUnmatched reports whether the payment now has a PAID order.
func (s *Sweeper) reconcileUnmatched(ctx context.Context, p *repository.UnmatchedPayment) bool {
	ref := &domain.Order{StripeSessionID: p.SessionID}

	changed, err := s.store.MarkPaidBySession(ctx, p.SessionID)
	if err == nil {
		if changed {
			s.report(ctx, anomaly.KindOrderRecovered, ref, "late order matched unmatched payment", nil)
		}
		return true
	}
	if !errors.Is(err, repository.ErrOrderNotFound) {
		s.report(ctx, anomaly.KindReconcileFailed, ref, "mark paid", err)
		return false
	}

	session, err := s.sessions.GetCheckoutSession(ctx, p.SessionID)
	if err != nil {
		s.report(ctx, anomaly.KindReconcileFailed, ref, "fetch checkout session", err)
		return false
	}
	if !session.Paid() {
		s.report(ctx, anomaly.KindReconcileFailed, ref,
			fmt.Sprintf("unmatched payment session is %s", session.PaymentStatus), nil)
		return false
	}

	order, err := s.recoverer.RecoverPaidOrder(ctx, session)
	if errors.Is(err, repository.ErrDuplicateSession) {
		return true
	}
	if err != nil {
		s.report(ctx, anomaly.KindReconcileFailed, ref, "rebuild order", err)
		return false
	}

	s.report(ctx, anomaly.KindOrderRecovered, order, "order rebuilt from checkout session", nil)
	return true
}

func (s *Sweeper) report(ctx context.Context, kind anomaly.Kind, order *domain.Order, detail string, err error) {
	a := anomaly.Anomaly{
		Kind:      kind,
		SessionID: order.StripeSessionID,
		UserID:    order.UserID,
		Detail:    detail,
		Err:       err,
	}
	if order.ID != uuid.Nil {
		a.OrderID = order.ID.String()
	}
	s.sink.Report(ctx, a)
}
