// Order HTTP handlers.
//
// This file exposes REST endpoints for the purchase flow:
//   - POST /orders                   (open a payment and start the lifecycle)
//   - GET  /orders/{chatRef}         (current live order for a buyer)
//   - POST /orders/{chatRef}/check   (poll the gateway and apply the outcome now)
//   - GET  /admin/orders             (paginated backlog listing)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Lifecycle semantics live in the
// services package; this layer only maps its error taxonomy onto statuses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ovitor/go-pix-orders/internal/domain"
	"github.com/ovitor/go-pix-orders/internal/http/middleware"
	"github.com/ovitor/go-pix-orders/internal/services"
	"github.com/ovitor/go-pix-orders/internal/utils"
)

//
// Service contracts (context-aware)
//

// OrderService defines purchase operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type OrderService interface {
	// Create opens a payment intent, persists the order, and delivers the QR
	// payloads to the buyer's chat.
	Create(ctx context.Context, in services.CreateOrderInput) (*domain.Order, error)
	// Status returns the buyer's live order, if any.
	Status(ctx context.Context, chatRef string) (*domain.Order, error)
	// ListPage returns a page of live orders and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Order, int64, error)
}

// CheckService triggers an immediate reconciliation of one buyer's order.
type CheckService interface {
	// CheckNow polls the gateway and applies the lifecycle outcome. It returns
	// the live order after the check, or nil when the check resolved it.
	CheckNow(ctx context.Context, chatRef string) (services.CheckResult, *domain.Order, error)
}

// IdempotencyStore records completed purchase requests so that client retries
// carrying the same Idempotency-Key return the original order instead of
// opening a second charge.
type IdempotencyStore interface {
	// Find returns the record for (chatRef, key) if one exists and has not
	// expired at now.
	Find(ctx context.Context, chatRef, key string, now time.Time) (*domain.Idempotency, error)
	// Save stores a record after a successful creation; best effort.
	Save(ctx context.Context, chatRef, key, orderID string, status int) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for orders.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	orders  OrderService
	checker CheckService
	idem    IdempotencyStore
}

// New constructs and returns a Handlers instance bound to the given services.
// idem may be nil; replay handling is then disabled.
func New(orders OrderService, checker CheckService, idem IdempotencyStore) *Handlers {
	return &Handlers{orders: orders, checker: checker, idem: idem}
}

//
// DTOs
//

// CreateOrderRequest is the JSON payload for opening a purchase.
type CreateOrderRequest struct {
	// Amount is the charge as a decimal string, e.g. "19.90".
	Amount string `json:"amount" binding:"required"`
	// ChatRef identifies the buyer's conversation; one live order per chat.
	ChatRef string `json:"chat_ref" binding:"required"`
	// Email is the payer email forwarded to the gateway.
	Email string `json:"email" binding:"required"`
	// BuyerName is the display name shown in the audit trail.
	BuyerName string `json:"buyer_name"`
	// TaxID is the payer's CPF forwarded to the gateway.
	TaxID string `json:"tax_id"`
}

// CreateOrderResponse wraps the created order. Delivery reports whether the
// QR payloads reached the buyer's chat; "failed" means the order exists and
// the sweep keeps reconciling it, but the buyer saw nothing yet.
type CreateOrderResponse struct {
	Order    domain.Order `json:"order"`
	Delivery string       `json:"delivery"`
	Replayed bool         `json:"replayed,omitempty"`
}

// CheckOrderResponse reports the outcome of an on-demand reconciliation.
type CheckOrderResponse struct {
	// PaymentStatus is the gateway's answer at the time of the check.
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	// Resolved is true when the check fulfilled or expired the order.
	Resolved bool `json:"resolved"`
	// Outcome names the transition applied: none, remind, fulfill, expire.
	Outcome string `json:"outcome"`
	// Order is the live order after the check; absent once resolved.
	Order *domain.Order `json:"order,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListOrdersResponse wraps a page of live orders and pagination information.
type ListOrdersResponse struct {
	Orders     []domain.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// CreateOrder opens a payment intent for a buyer and returns the persisted
// order. A request replaying a previously completed Idempotency-Key returns
// the original order with Replayed set instead of charging again.
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ctx := c.Request.Context()
	chatRef := strings.TrimSpace(req.ChatRef)

	// Serve replays from the idempotency record before touching the gateway.
	if key, hasKey := middleware.GetIdempotencyKey(c); hasKey && h.idem != nil && middleware.IsReplay(c) {
		if rec, err := h.idem.Find(ctx, chatRef, key, time.Now().UTC()); err == nil && rec != nil {
			if o, err := h.orders.Status(ctx, chatRef); err == nil && o.ID == rec.OrderID {
				ok(c, http.StatusOK, CreateOrderResponse{Order: *o, Delivery: "delivered", Replayed: true})
				return
			}
			// Order already resolved and removed; report the recorded outcome.
			ok(c, http.StatusOK, gin.H{"order_id": rec.OrderID, "replayed": true})
			return
		}
	}

	o, err := h.orders.Create(ctx, services.CreateOrderInput{
		Amount:    req.Amount,
		Email:     req.Email,
		BuyerName: req.BuyerName,
		TaxID:     req.TaxID,
		ChatRef:   chatRef,
	})
	if err != nil && o == nil {
		h.failCreate(c, err)
		return
	}

	// Record the completed request for future replays; best effort.
	if key, hasKey := middleware.GetIdempotencyKey(c); hasKey && h.idem != nil {
		_ = h.idem.Save(ctx, chatRef, key, o.ID, http.StatusCreated)
	}

	delivery := "delivered"
	if err != nil {
		// Order persisted, QR delivery failed; the sweep keeps it alive.
		delivery = "failed"
	}
	ok(c, http.StatusCreated, CreateOrderResponse{Order: *o, Delivery: delivery})
}

// failCreate maps creation-path service errors onto HTTP statuses.
func (h *Handlers) failCreate(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAmount):
		fail(c, http.StatusBadRequest, ErrCodeInvalidAmount, "amount must be a positive decimal")
	case errors.Is(err, services.ErrInvalidOrder):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat_ref required")
	case errors.Is(err, services.ErrDuplicateOrder):
		fail(c, http.StatusConflict, ErrCodeDuplicateOrder, "a pending payment already exists for this buyer")
	case errors.Is(err, services.ErrGatewayRejected):
		fail(c, http.StatusBadGateway, ErrCodeGatewayRejected, "the payment processor rejected the charge")
	case errors.Is(err, services.ErrInvalidGatewayResponse):
		fail(c, http.StatusBadGateway, ErrCodeGatewayBadResponse, "the payment processor returned an unusable response")
	case errors.Is(err, services.ErrGatewayUnavailable):
		c.Header("Retry-After", "5")
		fail(c, http.StatusServiceUnavailable, ErrCodeGatewayUnavailable, "the payment processor is unavailable, retry shortly")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// GetOrder returns the buyer's live order.
func (h *Handlers) GetOrder(c *gin.Context) {
	chatRef := c.Param("chatRef")
	o, err := h.orders.Status(c.Request.Context(), chatRef)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no live order for this buyer")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, o)
}

// CheckOrder polls the gateway for the buyer's order and applies the outcome
// immediately, outside the sweep cadence. A concurrent check on the same
// order yields 202 so the client can simply ask again.
func (h *Handlers) CheckOrder(c *gin.Context) {
	chatRef := c.Param("chatRef")
	res, o, err := h.checker.CheckNow(c.Request.Context(), chatRef)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no live order for this buyer")
		case errors.Is(err, services.ErrLockContention):
			fail(c, http.StatusAccepted, ErrCodeProcessing, "the order is being processed, check again shortly")
		case errors.Is(err, services.ErrGatewayUnavailable):
			c.Header("Retry-After", "5")
			fail(c, http.StatusServiceUnavailable, ErrCodeGatewayUnavailable, "the payment processor is unavailable, retry shortly")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, CheckOrderResponse{
		PaymentStatus: res.Status,
		Resolved:      res.Resolved,
		Outcome:       res.Action.String(),
		Order:         o,
	})
}

// ListOrders returns a page of the live order backlog for operators.
func (h *Handlers) ListOrders(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.orders.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListOrdersResponse{
		Orders: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}
