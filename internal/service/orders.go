package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/era_store/internal/domain"
	"github.com/fjod/era_store/internal/payment"
	"github.com/google/uuid"
)

const latestOrderTimeout = 5 * time.Second

// LatestOrder returns the newest order of the user. Concurrent reads for the same user
// share one query, which runs detached from the caller that happened to start it.
func (s *CheckoutServiceImpl) LatestOrder(ctx context.Context, userID string) (*domain.Order, error) {
	v, err, _ := s.sfg.Do("latest:"+userID, func() (interface{}, error) {
		queryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), latestOrderTimeout)
		defer cancel()
		return s.orders.LatestOrderByUser(queryCtx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Order), nil
}

func (s *CheckoutServiceImpl) ListOrders(ctx context.Context, userID string) ([]*domain.Order, error) {
	orders, err := s.orders.ListOrdersByUser(ctx, userID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// RecoverPaidOrder rebuilds a PAID order from a paid provider session that has no order row.
func (s *CheckoutServiceImpl) RecoverPaidOrder(ctx context.Context, session *payment.Session) (*domain.Order, error) {
	userID := session.Metadata[metaUserID]
	if userID == "" {
		userID = session.ClientReferenceID
	}
	applied, _ := strconv.ParseInt(session.Metadata[metaPointsApplied], 10, 64)

	currency := session.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}

	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Total:           session.AmountTotal,
		Currency:        strings.ToUpper(currency),
		ItemsSummary:    session.Metadata[metaItemsSummary],
		StripeSessionID: session.ID,
		PointsApplied:   max(applied, 0),
	}
	if err := s.insertNumbered(ctx, order, s.orders.CreatePaidOrder); err != nil {
		return nil, err
	}
	return order, nil
}
