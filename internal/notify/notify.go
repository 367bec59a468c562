// Package notify delivers messages and images to buyers over the chat
// transport and records lifecycle audit events. The Notifier and AuditSink
// interfaces are the capability boundaries consumed by the service layer;
// the Telegram implementation lives in telegram.go.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/ovitor/go-pix-orders/internal/domain"
)

// Sentinel errors classifying delivery failures.
//
//   - ErrBlocked: the recipient can no longer be reached (blocked the bot,
//     deleted the account). Not retryable.
//   - ErrDelivery: transient transport failure. Retryable.
var (
	ErrBlocked  = errors.New("recipient unreachable")
	ErrDelivery = errors.New("delivery failed")
)

// Notifier sends chat messages to a buyer identified by chat reference.
// Implementations are safe for concurrent use.
type Notifier interface {
	// SendText delivers a plain text message.
	SendText(ctx context.Context, chatRef, text string) error
	// SendImage delivers an image with a caption.
	SendImage(ctx context.Context, chatRef string, image []byte, caption string) error
}

// Audit event kinds recorded over an order's lifetime.
const (
	AuditOrderCreated = "order_created"
	AuditFulfilled    = "fulfilled"
	AuditExpired      = "expired"
	AuditUserBlocked  = "user_blocked"
)

// AuditSink records lifecycle events, best-effort. Implementations must never
// block or fail order-state progress: errors are swallowed and logged inside.
type AuditSink interface {
	Record(ctx context.Context, kind string, order domain.Order, at time.Time)
}
