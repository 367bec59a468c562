package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ovitor/go-pix-orders/internal/config"
	"github.com/ovitor/go-pix-orders/internal/sysutil"
)

// defaultAPIBaseURL is used when no BOT_API_URL override is configured.
const defaultAPIBaseURL = "https://api.telegram.org"

// Telegram delivers messages through the Telegram Bot API. The chat reference
// is the Telegram chat id as a string.
type Telegram struct {
	HTTP    *http.Client
	BaseURL string
	Token   string
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram builds a Telegram notifier from bot configuration.
func NewTelegram(cfg config.BotConfig) *Telegram {
	return &Telegram{
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		BaseURL: strings.TrimRight(sysutil.FirstNonEmpty(cfg.APIBaseURL, defaultAPIBaseURL), "/"),
		Token:   cfg.Token,
	}
}

// apiResponse is the Bot API envelope; only failure metadata is consumed.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (t *Telegram) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.BaseURL, t.Token, method)
}

// classify maps a Bot API failure to the package's error taxonomy. A 403
// means the user blocked the bot; everything else is treated as transient.
func classify(status int, api apiResponse) error {
	code := api.ErrorCode
	if code == 0 {
		code = status
	}
	if code == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrBlocked, api.Description)
	}
	return fmt.Errorf("%w: status %d %s", ErrDelivery, code, api.Description)
}

func (t *Telegram) do(req *http.Request) error {
	resp, err := t.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		return fmt.Errorf("%w: status %d", ErrDelivery, resp.StatusCode)
	}
	if api.OK {
		return nil
	}
	return classify(resp.StatusCode, api)
}

// SendText implements Notifier.
func (t *Telegram) SendText(ctx context.Context, chatRef, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": chatRef,
		"text":    text,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req)
}

// SendImage implements Notifier. The image is uploaded as a photo attachment
// with the caption alongside.
func (t *Telegram) SendImage(ctx context.Context, chatRef string, image []byte, caption string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", chatRef); err != nil {
		return err
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("photo", "qrcode.png")
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, bytes.NewReader(image)); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendPhoto"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return t.do(req)
}
