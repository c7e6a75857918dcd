package cache

import (
	"context"
	"errors"

	"github.com/fjod/era_store/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, key string) (*domain.StoredCart, error)
	Set(ctx context.Context, key string, cart *domain.StoredCart) error
	Delete(ctx context.Context, key string) error
}

var ErrCacheMiss = errors.New("cache miss")
