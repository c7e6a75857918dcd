package repository

import (
	"context"
	"errors"

	"github.com/fjod/era_store/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository is the durable side of cart storage. Carts are keyed by user id or by an
// anonymous cart id and always written as a full item list.
type CartRepository interface {
	GetCart(ctx context.Context, key string) (*domain.StoredCart, error)
	ReplaceItems(ctx context.Context, key string, items []domain.LineItem) error
	DeleteCart(ctx context.Context, key string) error
}
