package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ovitor/go-pix-orders/internal/config"
)

func testTelegram(t *testing.T, handler http.HandlerFunc) *Telegram {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTelegram(config.BotConfig{Token: "test-token", APIBaseURL: srv.URL})
}

func TestSendText_Success(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	tg := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	if err := tg.SendText(context.Background(), "42", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["chat_id"] != "42" || gotBody["text"] != "hello" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestSendText_BlockedAndTransient(t *testing.T) {
	tg := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": false, "error_code": 403, "description": "Forbidden: bot was blocked by the user",
		})
	})
	if err := tg.SendText(context.Background(), "42", "hi"); !errors.Is(err, ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}

	tg = testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 502})
	})
	if err := tg.SendText(context.Background(), "42", "hi"); !errors.Is(err, ErrDelivery) {
		t.Fatalf("err = %v, want ErrDelivery", err)
	}
}

func TestSendText_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tg := NewTelegram(config.BotConfig{Token: "t", APIBaseURL: srv.URL})
	srv.Close()

	if err := tg.SendText(context.Background(), "42", "hi"); !errors.Is(err, ErrDelivery) {
		t.Fatalf("err = %v, want ErrDelivery", err)
	}
}

func TestSendImage_MultipartUpload(t *testing.T) {
	var gotPath, caption, chatID string
	var photo []byte

	tg := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		chatID = r.FormValue("chat_id")
		caption = r.FormValue("caption")
		f, _, err := r.FormFile("photo")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer f.Close()
		photo, _ = io.ReadAll(f)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	err := tg.SendImage(context.Background(), "42", []byte("png-bytes"), "scan me")
	if err != nil {
		t.Fatalf("SendImage: %v", err)
	}
	if gotPath != "/bottest-token/sendPhoto" {
		t.Errorf("path = %q", gotPath)
	}
	if chatID != "42" || caption != "scan me" {
		t.Errorf("chat_id=%q caption=%q", chatID, caption)
	}
	if string(photo) != "png-bytes" {
		t.Errorf("photo = %q", photo)
	}
}

func TestSendImage_Blocked(t *testing.T) {
	tg := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 403})
	})
	if err := tg.SendImage(context.Background(), "42", []byte("x"), ""); !errors.Is(err, ErrBlocked) {
		t.Fatalf("err = %v, want ErrBlocked", err)
	}
}

func TestChannelAudit_PostsToChannel(t *testing.T) {
	var sent []string
	n := &fakeNotifier{onText: func(chatRef, text string) error {
		sent = append(sent, chatRef+"|"+text)
		return nil
	}}
	sink := NewChannelAudit(n, "audit-chat", testLogger())

	sink.Record(context.Background(), AuditFulfilled, sampleAuditOrder(), time.Now())
	if len(sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(sent))
	}
	if !strings.HasPrefix(sent[0], "audit-chat|") {
		t.Errorf("wrong channel: %q", sent[0])
	}
	if !strings.Contains(sent[0], "PURCHASE COMPLETED") || !strings.Contains(sent[0], "Maria") {
		t.Errorf("message = %q", sent[0])
	}
}

func TestChannelAudit_LogOnlyWhenUnconfigured(t *testing.T) {
	n := &fakeNotifier{onText: func(chatRef, text string) error {
		t.Error("no message expected without a channel")
		return nil
	}}
	sink := NewChannelAudit(n, "", testLogger())
	sink.Record(context.Background(), AuditExpired, sampleAuditOrder(), time.Now())
}

func TestChannelAudit_SwallowsDeliveryErrors(t *testing.T) {
	n := &fakeNotifier{onText: func(chatRef, text string) error {
		return ErrDelivery
	}}
	sink := NewChannelAudit(n, "audit-chat", testLogger())
	// Must not panic or propagate.
	sink.Record(context.Background(), AuditUserBlocked, sampleAuditOrder(), time.Now())
}
