package cart

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/fjod/era_store/internal/cart/cache"
	"github.com/fjod/era_store/internal/cart/repository"
	"github.com/fjod/era_store/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	cacheOpTimeout = time.Second
	loadTimeout    = 5 * time.Second
	stripeCount    = 64
)

// Storage persists the full item list of one cart.
type Storage interface {
	Load(ctx context.Context, key string) ([]domain.LineItem, error)
	Save(ctx context.Context, key string, items []domain.LineItem) error
	Delete(ctx context.Context, key string) error
}

// stripe serialises cache writes for the keys hashed onto it. gen moves on every write so a
// read-through fill started before the write can tell it is stale.
type stripe struct {
	mu  sync.Mutex
	gen uint64
}

// CachedStorage reads through Redis into Mongo. Saves write the new list to both.
type CachedStorage struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	logger  zerolog.Logger
	sfg     singleflight.Group
	stripes [stripeCount]stripe
}

func NewCachedStorage(repo repository.CartRepository, c cache.CartCache, logger zerolog.Logger) *CachedStorage {
	return &CachedStorage{
		repo:   repo,
		cache:  c,
		logger: logger.With().Str("component", "cart_storage").Logger(),
	}
}

func (s *CachedStorage) stripeFor(key string) *stripe {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &s.stripes[h.Sum32()%stripeCount]
}

func (s *CachedStorage) Load(ctx context.Context, key string) ([]domain.LineItem, error) {
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		// The load is shared, so it must not die with whichever caller started it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		stored, err := s.cache.Get(loadCtx, key)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("cart_key", key).Msg("cache get error")
		}

		st := s.stripeFor(key)
		st.mu.Lock()
		gen := st.gen
		st.mu.Unlock()

		stored, err = s.repo.GetCart(loadCtx, key)
		if errors.Is(err, repository.ErrCartNotFound) {
			return &domain.StoredCart{Key: key}, nil
		}
		if err != nil {
			return nil, err
		}

		go s.fill(key, stored, gen)
		return stored, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", key, err)
	}

	// Results are shared between singleflight callers; hand each one its own slice.
	stored := v.(*domain.StoredCart)
	return append([]domain.LineItem(nil), stored.Items...), nil
}

// fill caches a cart read from Mongo unless a write for the same key happened since the read.
func (s *CachedStorage) fill(key string, stored *domain.StoredCart, gen uint64) {
	st := s.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.gen != gen {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := s.cache.Set(ctx, key, stored); err != nil {
		s.logger.Warn().Err(err).Str("cart_key", key).Msg("cache set error")
	}
}

func (s *CachedStorage) Save(ctx context.Context, key string, items []domain.LineItem) error {
	if err := s.repo.ReplaceItems(ctx, key, items); err != nil {
		return fmt.Errorf("save cart %s: %w", key, err)
	}
	s.refresh(key, &domain.StoredCart{Key: key, Items: items})
	return nil
}

// Delete removes the cart document. A cart that was never saved is not an error.
func (s *CachedStorage) Delete(ctx context.Context, key string) error {
	if err := s.repo.DeleteCart(ctx, key); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return fmt.Errorf("delete cart %s: %w", key, err)
	}
	s.refresh(key, nil)
	return nil
}

// refresh replaces the cached entry with stored, or evicts it when stored is nil or the
// write fails.
func (s *CachedStorage) refresh(key string, stored *domain.StoredCart) {
	st := s.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.gen++

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if stored != nil {
		err := s.cache.Set(ctx, key, stored)
		if err == nil {
			return
		}
		s.logger.Warn().Err(err).Str("cart_key", key).Msg("cache write error, evicting")
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("cart_key", key).Msg("cache invalidate error")
	}
}
