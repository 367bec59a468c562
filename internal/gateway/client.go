package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ovitor/go-pix-orders/internal/config"
	"github.com/ovitor/go-pix-orders/internal/domain"
)

// Client talks to the processor's REST API. All calls inherit the configured
// HTTP client timeout in addition to the caller's context deadline.
type Client struct {
	HTTP        *http.Client
	BaseURL     string
	AccessToken string
}

var _ Gateway = (*Client)(nil)

// NewClient builds a Client from gateway configuration.
func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		HTTP:        &http.Client{Timeout: cfg.Timeout},
		BaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		AccessToken: cfg.AccessToken,
	}
}

// createPaymentBody mirrors the processor's payment creation schema.
type createPaymentBody struct {
	TransactionAmount float64     `json:"transaction_amount"`
	Description       string      `json:"description"`
	PaymentMethodID   string      `json:"payment_method_id"`
	Payer             paymentUser `json:"payer"`
	DateOfExpiration  string      `json:"date_of_expiration"`
}

type paymentUser struct {
	Email          string         `json:"email"`
	Identification identification `json:"identification"`
}

type identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// paymentResponse holds the subset of the processor response we consume.
type paymentResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// CreatePayment implements Gateway.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Intent, error) {
	amount, err := strconv.ParseFloat(req.Amount, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q", ErrRejected, req.Amount)
	}

	body := createPaymentBody{
		TransactionAmount: amount,
		Description:       req.Description,
		PaymentMethodID:   "pix",
		Payer: paymentUser{
			Email:          req.PayerEmail,
			Identification: identification{Type: "cpf", Number: req.PayerTaxID},
		},
		DateOfExpiration: req.ExpiresAt.UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payments", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.AccessToken)
	httpReq.Header.Set("X-Idempotency-Key", req.IdempotencyKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var pr paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	td := pr.PointOfInteraction.TransactionData
	if pr.ID.String() == "" || td.QRCode == "" || td.QRCodeBase64 == "" {
		return nil, fmt.Errorf("%w: missing payment payload", ErrInvalidResponse)
	}
	img, err := base64.StdEncoding.DecodeString(td.QRCodeBase64)
	if err != nil || len(img) == 0 {
		return nil, fmt.Errorf("%w: undecodable QR image", ErrInvalidResponse)
	}

	return &Intent{
		ExternalRef: pr.ID.String(),
		QRCode:      td.QRCode,
		QRImage:     img,
	}, nil
}

// GetStatus implements Gateway.
func (c *Client) GetStatus(ctx context.Context, externalRef string) (domain.PaymentStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/payments/"+externalRef, nil)
	if err != nil {
		return domain.PaymentUnknown, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return domain.PaymentUnknown, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		// The processor no longer knows the reference; not approved.
		return domain.PaymentUnknown, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return domain.PaymentUnknown, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return domain.PaymentUnknown, nil
	}

	var pr paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return domain.PaymentUnknown, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch pr.Status {
	case "approved":
		return domain.PaymentApproved, nil
	case "pending", "in_process", "authorized":
		return domain.PaymentPending, nil
	default:
		return domain.PaymentUnknown, nil
	}
}
