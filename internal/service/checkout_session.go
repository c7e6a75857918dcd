package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fjod/era_store/internal/anomaly"
	"github.com/fjod/era_store/internal/domain"
	"github.com/fjod/era_store/internal/payment"
)

// Metadata keys written on every checkout session. Reconciliation reads them back to rebuild
// an order the storefront failed to record.
const (
	metaUserID            = "user_id"
	metaPointsToUse       = "points_to_use"
	metaPointsApplied     = "points_applied"
	metaShippingAddressID = "shipping_address_id"
	metaItemsSummary      = "items_summary"
)

// BuildSession prices the cart, opens a hosted checkout session and records the PENDING
// order. The provider is called at most once per request.
func (s *CheckoutServiceImpl) BuildSession(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	for _, item := range req.Items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}

	subtotal, err := domain.CheckedSubtotal(req.Items)
	if err != nil {
		return nil, err
	}

	var (
		balance    int64
		customerID string
	)
	if req.UserID != "" {
		p, err := s.profiles.Lookup(ctx, req.UserID)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("points balance unavailable, using 0")
		} else {
			balance = p.Points
			customerID = p.StripeCustomerID
		}
	}

	applied := domain.ApplicablePoints(req.PointsToUse, balance, subtotal)
	summary := domain.ItemsSummary(req.Items)

	sessionReq := payment.SessionRequest{
		Items:             req.Items,
		Currency:          s.cfg.Currency,
		SuccessURL:        s.cfg.SuccessURL,
		CancelURL:         s.cfg.CancelURL,
		ClientReferenceID: req.UserID,
		CustomerID:        customerID,
		Metadata: map[string]string{
			metaUserID:            req.UserID,
			metaPointsToUse:       strconv.FormatInt(max(req.PointsToUse, 0), 10),
			metaPointsApplied:     strconv.FormatInt(applied, 10),
			metaShippingAddressID: req.ShippingAddressID,
			metaItemsSummary:      summary,
		},
	}

	providerCtx, cancel := s.withProviderTimeout(ctx)
	session, err := s.provider.CreateCheckoutSession(providerCtx, sessionReq)
	cancel()
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", req.UserID).Msg("failed to create checkout session")
		return nil, &SessionCreationError{Err: err}
	}
	if session.URL == "" {
		s.logger.Error().Str("session_id", session.ID).Msg("checkout session returned without url")
		return nil, &SessionCreationError{Err: ErrMissingRedirectURL}
	}

	result := &domain.CheckoutResult{
		URL:           session.URL,
		SessionID:     session.ID,
		Subtotal:      subtotal,
		PointsApplied: applied,
		Payable:       subtotal - applied,
	}

	order, err := s.CreatePendingOrder(ctx, session.ID, req, applied)
	if err != nil {
		s.sink.Report(ctx, anomaly.Anomaly{
			Kind:      anomaly.KindOrderWriteFailed,
			SessionID: session.ID,
			UserID:    req.UserID,
			Detail:    fmt.Sprintf("subtotal=%d points_applied=%d", subtotal, applied),
			Err:       err,
		})
		return result, nil
	}

	result.OrderNumber = order.Number
	s.logger.Info().
		Str("session_id", session.ID).
		Str("order_number", order.Number).
		Int64("subtotal", subtotal).
		Int64("points_applied", applied).
		Msg("checkout session created")
	return result, nil
}
