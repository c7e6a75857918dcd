package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/era_store/internal/domain"
	"github.com/fjod/era_store/internal/repository"
	"github.com/google/uuid"
)

// CreatePendingOrder records the order for a freshly created checkout session. The stored
// total is the undiscounted subtotal; applied points are kept alongside it.
func (s *CheckoutServiceImpl) CreatePendingOrder(ctx context.Context, sessionID string, req *domain.CheckoutRequest, pointsApplied int64) (*domain.Order, error) {
	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          req.UserID,
		Total:           domain.Subtotal(req.Items),
		Currency:        strings.ToUpper(s.cfg.Currency),
		Status:          domain.OrderStatusPending,
		ItemsSummary:    domain.ItemsSummary(req.Items),
		StripeSessionID: sessionID,
		PointsApplied:   pointsApplied,
	}
	if err := s.insertNumbered(ctx, order, s.orders.CreateOrder); err != nil {
		return nil, err
	}
	return order, nil
}

// insertNumbered assigns an order number and inserts, drawing a new suffix when the number
// is already taken.
func (s *CheckoutServiceImpl) insertNumbered(ctx context.Context, order *domain.Order, insert func(context.Context, *domain.Order) error) error {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		order.Number = domain.OrderNumber(s.cfg.OrderPrefix, s.now(), s.randSuffix())

		err := insert(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateNumber) {
			return fmt.Errorf("insert order for session %s: %w", order.StripeSessionID, err)
		}
		s.logger.Debug().Str("number", order.Number).Int("attempt", attempt).Msg("order number collision")
	}
	return fmt.Errorf("%w after %d attempts", ErrOrderNumberExhausted, maxNumberAttempts)
}
