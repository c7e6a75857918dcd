package repository

import (
	"context"
	"fmt"
	"time"
)

// UnmatchedPayment is a confirmed payment whose checkout session had no order when the
// provider event arrived.
type UnmatchedPayment struct {
	SessionID   string
	EventID     string
	AmountTotal int64
	CreatedAt   time.Time
}

// RecordUnmatchedPayment keeps the first report for a session; redeliveries are ignored.
func (r *Repository) RecordUnmatchedPayment(ctx context.Context, p UnmatchedPayment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO unmatched_payments (stripe_session_id, event_id, amount_total)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (stripe_session_id) DO NOTHING`,
		p.SessionID, p.EventID, p.AmountTotal,
	)
	if err != nil {
		return fmt.Errorf("insert unmatched payment: %w", err)
	}
	return nil
}

func (r *Repository) ListUnmatchedPayments(ctx context.Context, limit int) ([]*UnmatchedPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT stripe_session_id, event_id, amount_total, created_at
		 FROM unmatched_payments
		 WHERE resolved_at IS NULL
		 ORDER BY created_at
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unmatched payments: %w", err)
	}
	defer rows.Close()

	var payments []*UnmatchedPayment
	for rows.Next() {
		var p UnmatchedPayment
		if err := rows.Scan(&p.SessionID, &p.EventID, &p.AmountTotal, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan unmatched payment: %w", err)
		}
		payments = append(payments, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return payments, nil
}

func (r *Repository) ResolveUnmatchedPayment(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE unmatched_payments SET resolved_at = NOW()
		 WHERE stripe_session_id = $1 AND resolved_at IS NULL`, sessionID)
	if err != nil {
		return fmt.Errorf("resolve unmatched payment: %w", err)
	}
	return nil
}
