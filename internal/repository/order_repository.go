package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/era_store/internal/domain"
)

const orderColumns = `id, user_id, number, total, currency, status, items_summary,
	stripe_session_id, points_applied, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order  domain.Order
		userID sql.NullString
	)
	err := row.Scan(
		&order.ID,
		&userID,
		&order.Number,
		&order.Total,
		&order.Currency,
		&order.Status,
		&order.ItemsSummary,
		&order.StripeSessionID,
		&order.PointsApplied,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if !order.Status.Valid() {
		return nil, fmt.Errorf("order %s has unknown status %q", order.ID, order.Status)
	}
	order.UserID = userID.String
	return &order, nil
}

func nullableUserID(userID string) sql.NullString {
	return sql.NullString{String: userID, Valid: userID != ""}
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	query := `INSERT INTO orders (id, user_id, number, total, currency, status, items_summary,
	              stripe_session_id, points_applied, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	          RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		order.ID,
		nullableUserID(order.UserID),
		order.Number,
		order.Total,
		order.Currency,
		order.Status,
		order.ItemsSummary,
		order.StripeSessionID,
		order.PointsApplied,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if known := classifyInsertError(err); known != nil {
			return known
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// CreatePaidOrder inserts an order that is already PAID together with its OrderPaid outbox
// event. Used when a confirmed payment has no pending order to update.
func (r *Repository) CreatePaidOrder(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order.Status = domain.OrderStatusPaid
	query := `INSERT INTO orders (id, user_id, number, total, currency, status, items_summary,
	              stripe_session_id, points_applied, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	          RETURNING created_at, updated_at`
	err = tx.QueryRowContext(ctx, query,
		order.ID,
		nullableUserID(order.UserID),
		order.Number,
		order.Total,
		order.Currency,
		order.Status,
		order.ItemsSummary,
		order.StripeSessionID,
		order.PointsApplied,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if known := classifyInsertError(err); known != nil {
			return known
		}
		return fmt.Errorf("insert paid order: %w", err)
	}

	if err := insertStatusEvent(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit paid order: %w", err)
	}
	return nil
}

func (r *Repository) MarkPaidBySession(ctx context.Context, sessionID string) (bool, error) {
	return r.transitionBySession(ctx, sessionID, domain.OrderStatusPending, domain.OrderStatusPaid)
}

// CancelPendingBySession cancels an unpaid order whose checkout session expired.
func (r *Repository) CancelPendingBySession(ctx context.Context, sessionID string) (bool, error) {
	return r.transitionBySession(ctx, sessionID, domain.OrderStatusPending, domain.OrderStatusCanceled)
}

// transitionBySession moves the session's order from one status to another and records an
// outbox event for the changed row in the same transaction. It reports false when the
// order exists in some other status, and ErrOrderNotFound when the session has no order.
func (r *Repository) transitionBySession(ctx context.Context, sessionID string, from, to domain.OrderStatus) (bool, error) {
	if !domain.CanTransitionTo(from, to) {
		return false, fmt.Errorf("%w: %s to %s", domain.ErrIllegalTransition, from, to)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `UPDATE orders SET status = $1, updated_at = NOW()
	          WHERE stripe_session_id = $2 AND status = $3
	          RETURNING ` + orderColumns

	rows, err := tx.QueryContext(ctx, query, to, sessionID, from)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}

	var changed []*domain.Order
	for rows.Next() {
		order, errScan := scanOrder(rows)
		if errScan != nil {
			rows.Close()
			return false, fmt.Errorf("scan order row: %w", errScan)
		}
		changed = append(changed, order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return false, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	if len(changed) == 0 {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE stripe_session_id = $1)`, sessionID,
		).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("check order exists: %w", err)
		}
		if !exists {
			return false, ErrOrderNotFound
		}
		return false, nil
	}

	for _, order := range changed {
		if err := insertStatusEvent(ctx, tx, order); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit status update: %w", err)
	}
	return true, nil
}

// EventType names the outbox event emitted when an order enters status, e.g. OrderPaid.
func EventType(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusPaid:
		return "OrderPaid"
	case domain.OrderStatusCanceled:
		return "OrderCanceled"
	case domain.OrderStatusShipped:
		return "OrderShipped"
	case domain.OrderStatusDelivered:
		return "OrderDelivered"
	}
	return "OrderCreated"
}

func insertStatusEvent(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	payload := map[string]interface{}{
		"order_id":          order.ID,
		"number":            order.Number,
		"user_id":           order.UserID,
		"total":             order.Total,
		"currency":          order.Currency,
		"status":            order.Status,
		"points_applied":    order.PointsApplied,
		"points_earned":     domain.PointsForAmount(order.Total - order.PointsApplied),
		"stripe_session_id": order.StripeSessionID,
		"occurred_at":       order.UpdatedAt,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal order event payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`,
		order.ID.String(), EventType(order.Status), payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *Repository) LatestOrderByUser(ctx context.Context, userID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest order: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByUser(ctx context.Context, userID string, limit int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	return r.queryOrders(ctx, query, userID, limit)
}

// ListStalePending returns PENDING orders created before cutoff, oldest first.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
	          WHERE status = $1 AND created_at < $2 ORDER BY created_at LIMIT $3`

	return r.queryOrders(ctx, query, domain.OrderStatusPending, cutoff, limit)
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}
