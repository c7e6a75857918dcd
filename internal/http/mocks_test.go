package http

import (
	"context"
	"sync"

	"github.com/fjod/era_store/internal/catalog"
	"github.com/fjod/era_store/internal/domain"
	"github.com/fjod/era_store/internal/service"
)

type CheckoutServiceMock struct {
	result *domain.CheckoutResult
	err    error
	got    *domain.CheckoutRequest
}

func (m *CheckoutServiceMock) BuildSession(_ context.Context, req *domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type WebhookProcessorMock struct {
	outcome   service.Outcome
	err       error
	payload   []byte
	signature string
}

func (m *WebhookProcessorMock) ProcessWebhook(_ context.Context, payload []byte, signature string) (service.Outcome, error) {
	m.payload = payload
	m.signature = signature
	return m.outcome, m.err
}

type OrderReaderMock struct {
	order  *domain.Order
	orders []*domain.Order
	err    error
	userID string
}

func (m *OrderReaderMock) LatestOrder(_ context.Context, userID string) (*domain.Order, error) {
	m.userID = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *OrderReaderMock) ListOrders(_ context.Context, userID string) ([]*domain.Order, error) {
	m.userID = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

type CatalogMock struct {
	products map[string]*catalog.Product
	err      error
	category string
}

func (m *CatalogMock) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *CatalogMock) ListProducts(_ context.Context, category string) ([]*catalog.Product, error) {
	m.category = category
	if m.err != nil {
		return nil, m.err
	}
	var out []*catalog.Product
	for _, p := range m.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

type StorageMock struct {
	mu    sync.Mutex
	carts map[string][]domain.LineItem
}

func NewStorageMock() *StorageMock {
	return &StorageMock{carts: make(map[string][]domain.LineItem)}
}

func (m *StorageMock) Load(_ context.Context, key string) ([]domain.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LineItem(nil), m.carts[key]...), nil
}

func (m *StorageMock) Save(_ context.Context, key string, items []domain.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[key] = items
	return nil
}

func (m *StorageMock) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, key)
	return nil
}

type CustomerCreatorMock struct {
	customerID string
	err        error
}

func (m *CustomerCreatorMock) CreateCustomer(_ context.Context, userID, email string) (string, error) {
	if userID == "" || email == "" {
		return "", service.ErrMissingCustomerFields
	}
	if m.err != nil {
		return "", m.err
	}
	return m.customerID, nil
}
