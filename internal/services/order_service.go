// Package services – OrderService.
//
// This file implements the payment intent orchestrator: it turns a purchase
// request into a persisted, live order backed by a validated gateway payment
// intent, and answers status queries for a buyer's outstanding order.
//
// Idempotency-key discipline on the gateway call:
//   - every fresh attempt gets a new random key;
//   - a definite failure (rejection, invalid response) discards the key, so
//     the next attempt charges under a new one;
//   - an ambiguous failure (network error, timeout, 5xx) retains the key, so
//     a retry for the same buyer reuses it and cannot double-charge.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the chat reference.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ovitor/go-pix-orders/internal/config"
	"github.com/ovitor/go-pix-orders/internal/domain"
	"github.com/ovitor/go-pix-orders/internal/gateway"
	"github.com/ovitor/go-pix-orders/internal/notify"
	"github.com/ovitor/go-pix-orders/internal/repo"
)

// CreateOrderInput carries a purchase request from the chat front end.
type CreateOrderInput struct {
	Amount    string
	Email     string
	BuyerName string
	TaxID     string
	ChatRef   string
}

// OrderService orchestrates order creation and status queries.
type OrderService struct {
	DB       *gorm.DB
	Store    OrderStore
	Gateway  gateway.Gateway
	Notifier notify.Notifier
	Audit    notify.AuditSink

	// Lifecycle supplies the payment window used for gateway expiration.
	Lifecycle config.LifecycleConfig
	// Currency travels with the order for auditing.
	Currency string
	// BuyerNameMaxLen caps stored buyer names by rune length.
	BuyerNameMaxLen int

	Log zerolog.Logger

	// pendingKeys holds the idempotency key of the last ambiguous attempt
	// per chat reference.
	keysMu      sync.Mutex
	pendingKeys map[string]string

	now func() time.Time
}

// NewOrderService constructs an OrderService with sane defaults.
func NewOrderService(db *gorm.DB, store OrderStore, gw gateway.Gateway, n notify.Notifier, audit notify.AuditSink, lc config.LifecycleConfig, currency string, log zerolog.Logger) *OrderService {
	return &OrderService{
		DB:              db,
		Store:           store,
		Gateway:         gw,
		Notifier:        n,
		Audit:           audit,
		Lifecycle:       lc,
		Currency:        currency,
		BuyerNameMaxLen: 120,
		Log:             log,
		pendingKeys:     make(map[string]string),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the purchase request, opens a payment intent, persists the
// order, and delivers the QR payloads to the buyer.
//
// Ordering is deliberate: the order is persisted only after the gateway
// response is validated, so no failing path leaves a partial order behind.
// QR delivery failure after persistence surfaces to the caller together with
// the created order; the sweep keeps the order alive regardless.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("order.chat_ref", in.ChatRef)),
	)
	defer span.End()

	amount, err := parseAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	chatRef := strings.TrimSpace(in.ChatRef)
	if chatRef == "" {
		return nil, ErrInvalidOrder
	}

	// Fast duplicate check; the store's unique index is the backstop against
	// racing requests.
	if _, err := s.Store.GetOrderByChatRef(ctx, s.DB, chatRef); err == nil {
		return nil, ErrDuplicateOrder
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	key := s.attemptKey(chatRef)
	intent, err := s.Gateway.CreatePayment(ctx, gateway.CreatePaymentRequest{
		Amount:         amount,
		Currency:       s.Currency,
		PayerEmail:     strings.TrimSpace(in.Email),
		PayerTaxID:     strings.TrimSpace(in.TaxID),
		Description:    "Group access purchase",
		ExpiresAt:      now.Add(s.Lifecycle.PaymentWindow),
		IdempotencyKey: key,
	})
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrUnavailable):
			// Ambiguous: the charge may exist. Keep the key for the retry.
			s.retainKey(chatRef, key)
			return nil, ErrGatewayUnavailable
		case errors.Is(err, gateway.ErrRejected):
			s.discardKey(chatRef)
			return nil, ErrGatewayRejected
		case errors.Is(err, gateway.ErrInvalidResponse):
			s.discardKey(chatRef)
			return nil, ErrInvalidGatewayResponse
		default:
			return nil, err
		}
	}
	s.discardKey(chatRef)

	order, err := s.Store.CreateOrder(ctx, s.DB, &domain.Order{
		ExternalRef: intent.ExternalRef,
		ChatRef:     chatRef,
		BuyerName:   s.normalizeBuyerName(in.BuyerName),
		Amount:      amount,
		Currency:    s.Currency,
		Status:      domain.OrderPending,
		CreatedAt:   now,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateOrder
		}
		return nil, err
	}

	s.Audit.Record(ctx, notify.AuditOrderCreated, *order, now)

	window := int(s.Lifecycle.PaymentWindow / time.Minute)
	if err := s.Notifier.SendImage(ctx, chatRef, intent.QRImage, qrCaption(window)); err != nil {
		return order, deliveryError(err)
	}
	if err := s.Notifier.SendText(ctx, chatRef, copyPasteText(intent.QRCode)); err != nil {
		return order, deliveryError(err)
	}
	return order, nil
}

// Status returns the buyer's live order, or ErrOrderNotFound when nothing is
// outstanding (which the caller may interpret as "paid or never ordered").
func (s *OrderService) Status(ctx context.Context, chatRef string) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Status",
		trace.WithAttributes(attribute.String("order.chat_ref", chatRef)),
	)
	defer span.End()

	o, err := s.Store.GetOrderByChatRef(ctx, s.DB, strings.TrimSpace(chatRef))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

// ListPage returns a page of live orders (oldest first) and the total count,
// for operator inspection of the reconciliation backlog.
func (s *OrderService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Order, int64, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "ListPage")
	defer span.End()

	total, err := repo.CountOrders(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * pageSize
	orders, err := repo.ListOrdersPage(ctx, s.DB, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// attemptKey returns the idempotency key for this creation attempt: the key
// retained from a previous ambiguous failure if one exists, or a fresh one.
func (s *OrderService) attemptKey(chatRef string) string {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()
	if k, ok := s.pendingKeys[chatRef]; ok {
		return k
	}
	return uuid.NewString()
}

func (s *OrderService) retainKey(chatRef, key string) {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()
	s.pendingKeys[chatRef] = key
}

func (s *OrderService) discardKey(chatRef string) {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()
	delete(s.pendingKeys, chatRef)
}

// normalizeBuyerName trims, collapses whitespace, title-cases, and clips the
// display name captured at creation time.
func (s *OrderService) normalizeBuyerName(name string) string {
	name = whitespaceRE.ReplaceAllString(strings.TrimSpace(name), " ")
	if name == "" {
		return "Unknown buyer"
	}
	name = cases.Title(language.Und, cases.NoLower).String(name)
	if s.BuyerNameMaxLen > 0 {
		r := []rune(name)
		if len(r) > s.BuyerNameMaxLen {
			name = string(r[:s.BuyerNameMaxLen])
		}
	}
	return name
}

// parseAmount validates the requested amount as a positive decimal and
// returns its canonical string form.
func parseAmount(raw string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !d.IsPositive() {
		return "", ErrInvalidAmount
	}
	return d.StringFixed(2), nil
}

// deliveryError maps notifier failures to the service taxonomy.
func deliveryError(err error) error {
	if errors.Is(err, notify.ErrBlocked) {
		return ErrRecipientUnreachable
	}
	return ErrDeliveryFailed
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
