package service

import (
	"context"
	"fmt"

	"github.com/fjod/era_store/internal/payment"
)

// CreateCustomer provisions a provider customer for the user and stores its id on the profile.
func (s *CheckoutServiceImpl) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	if userID == "" || email == "" {
		return "", ErrMissingCustomerFields
	}

	providerCtx, cancel := s.withProviderTimeout(ctx)
	defer cancel()
	customerID, err := s.provider.CreateCustomer(providerCtx, payment.CustomerRequest{UserID: userID, Email: email})
	if err != nil {
		return "", fmt.Errorf("create provider customer: %w", err)
	}

	if err := s.profiles.SetStripeCustomerID(ctx, userID, customerID); err != nil {
		return "", fmt.Errorf("store customer id for %s: %w", userID, err)
	}

	s.logger.Info().Str("user_id", userID).Str("customer_id", customerID).Msg("provider customer created")
	return customerID, nil
}
