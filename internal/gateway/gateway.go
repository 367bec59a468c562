// Package gateway provides the payment processor client used to create PIX
// payment intents and poll their status. The Gateway interface is the
// capability boundary consumed by the service layer; Client is the HTTP
// implementation against a Mercado-Pago-style API.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/ovitor/go-pix-orders/internal/domain"
)

// Sentinel errors classifying gateway failures.
//
//   - ErrRejected: the gateway understood and refused the request (4xx).
//     Retrying the same request will not help.
//   - ErrUnavailable: network failure, timeout, or 5xx. Retryable; a timeout
//     is never interpreted as "not approved".
//   - ErrInvalidResponse: a 2xx response without a renderable payment payload.
var (
	ErrRejected        = errors.New("gateway rejected the payment request")
	ErrUnavailable     = errors.New("gateway unavailable")
	ErrInvalidResponse = errors.New("gateway returned an invalid response")
)

// CreatePaymentRequest carries everything needed to open a payment intent.
type CreatePaymentRequest struct {
	// Amount is a positive decimal string, already validated by the caller.
	Amount string
	// Currency is informational; the PIX rail settles in the account currency.
	Currency string
	// PayerEmail and PayerTaxID identify the payer to the processor.
	PayerEmail string
	PayerTaxID string
	// Description appears on the payer's statement.
	Description string
	// ExpiresAt is the instant the intent stops being payable.
	ExpiresAt time.Time
	// IdempotencyKey deduplicates the charge at the processor. The caller owns
	// key lifecycle: a fresh key per definite attempt, the same key across
	// ambiguous retries.
	IdempotencyKey string
}

// Intent is the validated result of creating a payment.
type Intent struct {
	// ExternalRef is the processor-assigned payment identifier, used for
	// status polling.
	ExternalRef string
	// QRCode is the copy-paste PIX payload.
	QRCode string
	// QRImage is the rendered QR as PNG bytes.
	QRImage []byte
}

// Gateway is the payment processor capability consumed by the order service
// and the reconciliation sweeper. Implementations must bound every call with
// a timeout and are safe for concurrent use.
type Gateway interface {
	// CreatePayment opens a payment intent and returns its reference and QR
	// payloads. Fails with ErrRejected, ErrUnavailable, or ErrInvalidResponse.
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Intent, error)

	// GetStatus reports the current payment status for a reference. Statuses
	// the processor reports that are neither approved nor pending map to
	// PaymentUnknown. Fails with ErrUnavailable only.
	GetStatus(ctx context.Context, externalRef string) (domain.PaymentStatus, error)
}
