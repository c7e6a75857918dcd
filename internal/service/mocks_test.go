package service

import (
	"context"
	"sync"

	"github.com/fjod/era_store/internal/anomaly"
	"github.com/fjod/era_store/internal/domain"
	"github.com/fjod/era_store/internal/payment"
	"github.com/fjod/era_store/internal/profile"
	"github.com/fjod/era_store/internal/repository"
)

// MockOrderStore keeps orders in memory keyed by session id and applies the same guarded
// transitions as the postgres repository.
type MockOrderStore struct {
	mu         sync.Mutex
	Orders     map[string]*domain.Order
	Unmatched  []repository.UnmatchedPayment
	Events     []string
	CreateErr  error
	UpdateErr  error
	LatestErr  error
	TakenNums  map[string]bool
	LatestHits int
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{
		Orders:    make(map[string]*domain.Order),
		TakenNums: make(map[string]bool),
	}
}

func (m *MockOrderStore) insert(order *domain.Order) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if m.TakenNums[order.Number] {
		return repository.ErrDuplicateNumber
	}
	if _, ok := m.Orders[order.StripeSessionID]; ok {
		return repository.ErrDuplicateSession
	}
	cp := *order
	m.Orders[order.StripeSessionID] = &cp
	m.TakenNums[order.Number] = true
	return nil
}

func (m *MockOrderStore) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(order)
}

func (m *MockOrderStore) CreatePaidOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.Status = domain.OrderStatusPaid
	if err := m.insert(order); err != nil {
		return err
	}
	m.Events = append(m.Events, "OrderPaid")
	return nil
}

func (m *MockOrderStore) transition(sessionID string, from, to domain.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return false, m.UpdateErr
	}
	order, ok := m.Orders[sessionID]
	if !ok {
		return false, repository.ErrOrderNotFound
	}
	if order.Status != from {
		return false, nil
	}
	order.Status = to
	m.Events = append(m.Events, repository.EventType(to))
	return true, nil
}

func (m *MockOrderStore) MarkPaidBySession(_ context.Context, sessionID string) (bool, error) {
	return m.transition(sessionID, domain.OrderStatusPending, domain.OrderStatusPaid)
}

func (m *MockOrderStore) CancelPendingBySession(_ context.Context, sessionID string) (bool, error) {
	return m.transition(sessionID, domain.OrderStatusPending, domain.OrderStatusCanceled)
}

func (m *MockOrderStore) LatestOrderByUser(ctx context.Context, userID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LatestHits++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.LatestErr != nil {
		return nil, m.LatestErr
	}
	var latest *domain.Order
	for _, o := range m.Orders {
		if o.UserID != userID {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, repository.ErrOrderNotFound
	}
	return latest, nil
}

func (m *MockOrderStore) ListOrdersByUser(_ context.Context, userID string, limit int) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []*domain.Order
	for _, o := range m.Orders {
		if o.UserID == userID && len(orders) < limit {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func (m *MockOrderStore) RecordUnmatchedPayment(_ context.Context, p repository.UnmatchedPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Unmatched {
		if existing.SessionID == p.SessionID {
			return nil
		}
	}
	m.Unmatched = append(m.Unmatched, p)
	return nil
}

func (m *MockOrderStore) order(sessionID string) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Orders[sessionID]
}

type MockProvider struct {
	Session     *payment.Session
	Err         error
	Calls       int
	LastRequest payment.SessionRequest
	CustomerID  string
	CustomerErr error
}

func (m *MockProvider) CreateCheckoutSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	m.Calls++
	m.LastRequest = req
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Session, nil
}

func (m *MockProvider) GetCheckoutSession(_ context.Context, id string) (*payment.Session, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &payment.Session{ID: id}, nil
}

func (m *MockProvider) CreateCustomer(_ context.Context, _ payment.CustomerRequest) (string, error) {
	m.Calls++
	return m.CustomerID, m.CustomerErr
}

type MockProfiles struct {
	Profiles  map[string]*profile.Profile
	LookupErr error
	SetErr    error
	Customers map[string]string
}

func (m *MockProfiles) Lookup(_ context.Context, userID string) (*profile.Profile, error) {
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	if p, ok := m.Profiles[userID]; ok {
		return p, nil
	}
	return &profile.Profile{ID: userID}, nil
}

func (m *MockProfiles) SetStripeCustomerID(_ context.Context, userID, customerID string) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.Customers == nil {
		m.Customers = make(map[string]string)
	}
	m.Customers[userID] = customerID
	return nil
}

type MockVerifier struct {
	Event payment.Event
	Err   error
}

func (m *MockVerifier) Verify([]byte, string) (payment.Event, error) {
	return m.Event, m.Err
}

type MockSink struct {
	mu      sync.Mutex
	Reports []anomaly.Anomaly
}

func (m *MockSink) Report(_ context.Context, a anomaly.Anomaly) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reports = append(m.Reports, a)
}

func (m *MockSink) kinds() []anomaly.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kinds []anomaly.Kind
	for _, r := range m.Reports {
		kinds = append(kinds, r.Kind)
	}
	return kinds
}
