// Package domain defines the persistence models for orders and idempotency
// records. These types are mapped with GORM and form the core data layer of
// the order lifecycle reconciler.
package domain

import "time"

// OrderStatus enumerates the lifecycle states of an order. Terminal states
// (approved, expired) immediately precede deletion: the orders table only
// ever holds live orders.
type OrderStatus string

const (
	// OrderPending is the only state a persisted order can rest in.
	OrderPending OrderStatus = "pending"
	// OrderApproved marks a fulfilled order just before it is removed.
	OrderApproved OrderStatus = "approved"
	// OrderExpired marks an abandoned order just before it is removed.
	OrderExpired OrderStatus = "expired"
)

// PaymentStatus is the reconciler's view of a payment intent as reported by
// the gateway. Anything the gateway reports that is not a definitive approval
// maps to Pending or Unknown; Unknown is treated as "not yet approved, no
// special effect".
type PaymentStatus string

const (
	PaymentApproved PaymentStatus = "approved"
	PaymentPending  PaymentStatus = "pending"
	PaymentUnknown  PaymentStatus = "unknown"
)

// Order represents a single pending purchase: a gateway-backed payment intent
// awaiting approval, reminder escalation, or expiry.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ExternalRef: payment identifier assigned by the gateway; unique,
//     immutable once set, used to poll payment status.
//   - ChatRef: identifier of the requesting conversation/user. Unique across
//     live orders, which enforces "one open order per buyer" at the store.
//   - BuyerName: display name captured at creation time; immutable.
//   - Amount / Currency: the charge as created against the gateway.
//   - Status: see OrderStatus. Gateway or network failures never change it;
//     the next sweep simply retries.
//   - RemarketStage: 0 before the first reminder, 1 after. Monotonically
//     non-decreasing, never skips.
//   - CreatedAt: clock origin for every elapsed-time decision.
//   - UpdatedAt: bumped on every mutation.
type Order struct {
	ID            string      `json:"id"             gorm:"type:char(36);primaryKey"`
	ExternalRef   string      `json:"external_ref"   gorm:"type:varchar(64);not null;uniqueIndex:ux_orders_external_ref"`
	ChatRef       string      `json:"chat_ref"       gorm:"type:varchar(64);not null;uniqueIndex:ux_orders_chat_ref"`
	BuyerName     string      `json:"buyer_name"     gorm:"type:varchar(255);not null"`
	Amount        string      `json:"amount"         gorm:"type:varchar(32);not null"`
	Currency      string      `json:"currency"       gorm:"type:varchar(8);not null"`
	Status        OrderStatus `json:"status"         gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','approved','expired')"`
	RemarketStage int         `json:"remarket_stage" gorm:"not null;default:0;check:remarket_stage IN (0,1)"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// Age reports how long the order has been outstanding at the given instant.
func (o Order) Age(now time.Time) time.Duration { return now.Sub(o.CreatedAt) }
