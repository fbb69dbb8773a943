package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// RazorpayConfig configures the Razorpay Orders API client.
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// RazorpayGateway charges through Razorpay by creating one order per cycle.
// The charge reference is sent as the order receipt.
type RazorpayGateway struct {
	cfg    RazorpayConfig
	client *http.Client
}

// NewRazorpayGateway creates a new RazorpayGateway.
func NewRazorpayGateway(cfg RazorpayConfig) *RazorpayGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.razorpay.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &RazorpayGateway{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// Charge creates an order for the cycle amount.
func (g *RazorpayGateway) Charge(ctx context.Context, req domain.ChargeRequest) (domain.ChargeResult, error) {
	body, err := json.Marshal(razorpayOrderRequest{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Reference,
		Notes: map[string]string{
			"subscription_id": req.SubscriptionID.String(),
			"user_id":         req.UserID.String(),
		},
	})
	if err != nil {
		return domain.ChargeResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return domain.ChargeResult{}, err
	}
	httpReq.SetBasicAuth(g.cfg.KeyID, g.cfg.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return domain.ChargeResult{}, fmt.Errorf("razorpay: create order: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.ChargeResult{}, fmt.Errorf("razorpay: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr razorpayError
		_ = json.Unmarshal(raw, &apiErr)
		msg := apiErr.Error.Description
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusTooManyRequests {
			return domain.ChargeResult{}, declined(msg)
		}
		return domain.ChargeResult{}, fmt.Errorf("razorpay: status %d: %s", resp.StatusCode, msg)
	}

	var order razorpayOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return domain.ChargeResult{}, fmt.Errorf("razorpay: decode order: %w", err)
	}
	if order.ID == "" {
		return domain.ChargeResult{}, fmt.Errorf("razorpay: order id missing")
	}
	return domain.ChargeResult{TransactionID: order.ID}, nil
}
