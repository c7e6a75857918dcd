package cart

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fjod/era_store/internal/cart/cache"
	"github.com/fjod/era_store/internal/cart/repository"
	"github.com/fjod/era_store/internal/domain"
)

type memStorage struct {
	mu      sync.Mutex
	carts   map[string][]domain.LineItem
	saves   int
	deletes int
	loadErr error
	saveErr error
}

func newMemStorage() *memStorage {
	return &memStorage{carts: make(map[string][]domain.LineItem)}
}

func (m *memStorage) Load(_ context.Context, key string) ([]domain.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]domain.LineItem(nil), m.carts[key]...), nil
}

func (m *memStorage) Save(_ context.Context, key string, items []domain.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.carts[key] = items
	return nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.carts, key)
	return nil
}

type mockRepository struct {
	mu        sync.Mutex
	carts     map[string]*domain.StoredCart
	getErr    error
	saveErr   error
	deleteErr error
	getCalls  atomic.Int32
	// afterGet runs once GetCart has read its result, before it returns.
	afterGet func()
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: make(map[string]*domain.StoredCart)}
}

func (m *mockRepository) GetCart(ctx context.Context, key string) (*domain.StoredCart, error) {
	m.getCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	getErr := m.getErr
	c, ok := m.carts[key]
	m.mu.Unlock()
	if m.afterGet != nil {
		m.afterGet()
	}
	if getErr != nil {
		return nil, getErr
	}
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return c, nil
}

func (m *mockRepository) ReplaceItems(_ context.Context, key string, items []domain.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.carts[key] = &domain.StoredCart{Key: key, Items: items}
	return nil
}

func (m *mockRepository) DeleteCart(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.carts[key]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, key)
	return nil
}

type mockCache struct {
	mu      sync.Mutex
	carts   map[string]*domain.StoredCart
	deleted []string
	getErr  error
	setErr  error
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.StoredCart)}
}

func (m *mockCache) Get(_ context.Context, key string) (*domain.StoredCart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.carts[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) Set(_ context.Context, key string, c *domain.StoredCart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.carts[key] = c
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockCache) cached(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[key]
	return ok
}

func (m *mockCache) items(key string) []domain.LineItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[key]; ok {
		return c.Items
	}
	return nil
}
