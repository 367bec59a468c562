package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ovitor/go-pix-orders/internal/config"
	"github.com/ovitor/go-pix-orders/internal/domain"
	"github.com/ovitor/go-pix-orders/internal/gateway"
	"github.com/ovitor/go-pix-orders/internal/repo"
)

func testLifecycle() config.LifecycleConfig {
	return config.LifecycleConfig{
		RemindAfter:   4 * time.Minute,
		ExpireAfter:   60 * time.Minute,
		PaymentWindow: 30 * time.Minute,
		SweepInterval: 30 * time.Second,
	}
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// memStore is an in-memory OrderStore; every mutation is recorded so tests
// can assert ordering and exactly-once application.
type memStore struct {
	mu     sync.Mutex
	orders map[string]domain.Order // keyed by ID
	nextID int

	createErr error
	updateErr error
	deleteErr error
	listErr   error

	updates []string // order IDs, in call order
	deletes []string
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]domain.Order)}
}

func (m *memStore) put(o domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

func (m *memStore) get(id string) (domain.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok
}

func (m *memStore) CreateOrder(_ context.Context, _ *gorm.DB, o *domain.Order) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, existing := range m.orders {
		if existing.ChatRef == o.ChatRef || existing.ExternalRef == o.ExternalRef {
			return nil, repo.ErrDuplicate
		}
	}
	m.nextID++
	cp := *o
	if cp.ID == "" {
		cp.ID = "order-" + time.Now().Format("150405.000000") + string(rune('a'+m.nextID%26))
	}
	m.orders[cp.ID] = cp
	return &cp, nil
}

func (m *memStore) GetOrder(_ context.Context, _ *gorm.DB, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (m *memStore) GetOrderByChatRef(_ context.Context, _ *gorm.DB, chatRef string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ChatRef == chatRef {
			cp := o
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memStore) UpdateOrder(_ context.Context, _ *gorm.DB, id string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	o, ok := m.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	if v, ok := patch["remarket_stage"]; ok {
		o.RemarketStage = v.(int)
	}
	if v, ok := patch["status"]; ok {
		o.Status = v.(domain.OrderStatus)
	}
	m.orders[id] = o
	m.updates = append(m.updates, id)
	return nil
}

func (m *memStore) DeleteOrder(_ context.Context, _ *gorm.DB, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.orders, id)
	m.deletes = append(m.deletes, id)
	return nil
}

func (m *memStore) ListLiveOrders(_ context.Context, _ *gorm.DB) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

// fakeGateway scripts CreatePayment and GetStatus outcomes and records the
// requests it received.
type fakeGateway struct {
	mu sync.Mutex

	intent    *gateway.Intent
	createErr error
	creates   []gateway.CreatePaymentRequest

	status    domain.PaymentStatus
	statusErr error
	statusFn  func(externalRef string) (domain.PaymentStatus, error)
	polls     []string
}

func (f *fakeGateway) CreatePayment(_ context.Context, req gateway.CreatePaymentRequest) (*gateway.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.intent != nil {
		return f.intent, nil
	}
	return &gateway.Intent{ExternalRef: "ext-1", QRCode: "pix-code", QRImage: []byte{1}}, nil
}

func (f *fakeGateway) GetStatus(_ context.Context, externalRef string) (domain.PaymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = append(f.polls, externalRef)
	if f.statusFn != nil {
		return f.statusFn(externalRef)
	}
	if f.statusErr != nil {
		return domain.PaymentUnknown, f.statusErr
	}
	return f.status, nil
}

type sentMessage struct {
	chatRef string
	text    string
	image   bool
}

// fakeNotifier records deliveries and can fail selectively.
type fakeNotifier struct {
	mu       sync.Mutex
	sent     []sentMessage
	textErr  error
	imageErr error
}

func (f *fakeNotifier) SendText(_ context.Context, chatRef, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatRef: chatRef, text: text})
	return f.textErr
}

func (f *fakeNotifier) SendImage(_ context.Context, chatRef string, _ []byte, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatRef: chatRef, text: caption, image: true})
	return f.imageErr
}

func (f *fakeNotifier) texts() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeAudit records audit events by kind.
type fakeAudit struct {
	mu    sync.Mutex
	kinds []string
}

func (f *fakeAudit) Record(_ context.Context, kind string, _ domain.Order, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
}

func (f *fakeAudit) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.kinds))
	copy(out, f.kinds)
	return out
}
