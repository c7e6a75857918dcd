package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateSession = errors.New("order already exists for checkout session")
	ErrDuplicateNumber  = errors.New("order number already taken")
)

const (
	uniqueViolation        = "23505"
	orderNumberConstraint  = "orders_number_key"
	orderSessionConstraint = "orders_stripe_session_id_key"
)

// classifyInsertError maps unique violations on orders to sentinel errors.
func classifyInsertError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case orderNumberConstraint:
		return ErrDuplicateNumber
	case orderSessionConstraint:
		return ErrDuplicateSession
	}
	return nil
}
