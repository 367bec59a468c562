package notify

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ovitor/go-pix-orders/internal/domain"
)

type fakeNotifier struct {
	onText  func(chatRef, text string) error
	onImage func(chatRef string, image []byte, caption string) error
}

func (f *fakeNotifier) SendText(_ context.Context, chatRef, text string) error {
	if f.onText != nil {
		return f.onText(chatRef, text)
	}
	return nil
}

func (f *fakeNotifier) SendImage(_ context.Context, chatRef string, image []byte, caption string) error {
	if f.onImage != nil {
		return f.onImage(chatRef, image, caption)
	}
	return nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func sampleAuditOrder() domain.Order {
	return domain.Order{
		ID:          "order-1",
		ChatRef:     "42",
		ExternalRef: "pay-1",
		BuyerName:   "Maria",
		Amount:      "10.00",
		Currency:    "BRL",
		Status:      domain.OrderPending,
		CreatedAt:   time.Now().UTC(),
	}
}
