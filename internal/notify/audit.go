package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ovitor/go-pix-orders/internal/domain"
)

// ChannelAudit posts lifecycle events to a dedicated audit chat and mirrors
// them into the structured log. Failures are logged and swallowed: auditing
// never blocks order-state progress.
//
// When ChatID is empty the sink degrades to log-only, which is the default
// for local development.
type ChannelAudit struct {
	Notifier Notifier
	ChatID   string
	Log      zerolog.Logger
}

var _ AuditSink = (*ChannelAudit)(nil)

// NewChannelAudit builds an audit sink posting to chatID via n.
func NewChannelAudit(n Notifier, chatID string, log zerolog.Logger) *ChannelAudit {
	return &ChannelAudit{Notifier: n, ChatID: chatID, Log: log}
}

// Record implements AuditSink.
func (a *ChannelAudit) Record(ctx context.Context, kind string, order domain.Order, at time.Time) {
	a.Log.Info().
		Str("event", kind).
		Str("order_id", order.ID).
		Str("chat_ref", order.ChatRef).
		Str("external_ref", order.ExternalRef).
		Int("remarket_stage", order.RemarketStage).
		Time("at", at).
		Msg("order audit")

	if a.ChatID == "" || a.Notifier == nil {
		return
	}

	msg := fmt.Sprintf(
		"%s\nbuyer: %s\nchat: %s\norder: %s\namount: %s %s\nat: %s",
		auditHeadline(kind),
		order.BuyerName,
		order.ChatRef,
		order.ID,
		order.Amount, order.Currency,
		at.UTC().Format(time.RFC3339),
	)
	if err := a.Notifier.SendText(ctx, a.ChatID, msg); err != nil {
		a.Log.Warn().Err(err).Str("event", kind).Msg("audit channel delivery failed")
	}
}

func auditHeadline(kind string) string {
	switch kind {
	case AuditOrderCreated:
		return "🧾 ORDER CREATED"
	case AuditFulfilled:
		return "✅ PURCHASE COMPLETED"
	case AuditExpired:
		return "⛔️ PURCHASE NOT COMPLETED"
	case AuditUserBlocked:
		return "🚫 USER BLOCKED THE BOT"
	default:
		return kind
	}
}
