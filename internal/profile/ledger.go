// Package profile reads the loyalty points balance and stores the payment provider customer
// id for a user. Points are accrued elsewhere from OrderPaid events and never written here.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Profile struct {
	ID               string
	Points           int64
	StripeCustomerID string
}

type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Lookup returns the profile for userID. A user without a row has zero points.
func (l *Ledger) Lookup(ctx context.Context, userID string) (*Profile, error) {
	p := &Profile{ID: userID}
	var customerID sql.NullString

	err := l.db.QueryRowContext(ctx,
		`SELECT era_points, stripe_customer_id FROM profiles WHERE id = $1`, userID,
	).Scan(&p.Points, &customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}

	p.Points = max(p.Points, 0)
	p.StripeCustomerID = customerID.String
	return p, nil
}

func (l *Ledger) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO profiles (id, stripe_customer_id, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE SET stripe_customer_id = EXCLUDED.stripe_customer_id, updated_at = NOW()`,
		userID, customerID,
	)
	if err != nil {
		return fmt.Errorf("update stripe customer id: %w", err)
	}
	return nil
}
