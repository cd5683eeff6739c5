package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a minimal PayPal Orders/Payments client covering the calls the
// payment provider and refund workflow need: order creation, order lookup,
// and capture refunds. Amounts cross this boundary as decimal strings.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type Order struct {
	ID        string
	Status    string
	Amount    decimal.Decimal
	Currency  string
	CaptureID string
	PayerID   string
	UpdatedAt *time.Time
}

type Refund struct {
	ID     string
	Status string
}

func NewClient(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) CreateOrder(ctx context.Context, reference string, amount decimal.Decimal, currency string) (*Order, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": reference,
			"amount": map[string]string{
				"currency_code": currency,
				"value":         amount.StringFixed(2),
			},
		}},
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &resp); err != nil {
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}
	return resp.toOrder()
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var resp orderResponse
	if err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil, &resp); err != nil {
		return nil, fmt.Errorf("GetOrder: %w", err)
	}
	return resp.toOrder()
}

func (c *Client) RefundCapture(ctx context.Context, captureID string, amount decimal.Decimal, currency string) (*Refund, error) {
	body := map[string]any{
		"amount": map[string]string{
			"currency_code": currency,
			"value":         amount.StringFixed(2),
		},
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/payments/captures/"+captureID+"/refund", body, &resp); err != nil {
		return nil, fmt.Errorf("RefundCapture: %w", err)
	}
	return &Refund{ID: resp.ID, Status: resp.Status}, nil
}

// RefundOrder refunds the capture behind a completed order. Refund APIs key
// on capture IDs, not order IDs, so this resolves the order first.
func (c *Client) RefundOrder(ctx context.Context, orderID string, amount decimal.Decimal, currency string) (*Refund, error) {
	order, err := c.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("RefundOrder: %w", err)
	}
	if order.CaptureID == "" {
		return nil, fmt.Errorf("RefundOrder: order %s has no capture", orderID)
	}

	refund, err := c.RefundCapture(ctx, order.CaptureID, amount, currency)
	if err != nil {
		return nil, fmt.Errorf("RefundOrder: %w", err)
	}
	return refund, nil
}

type orderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Amount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
		Payments struct {
			Captures []struct {
				ID string `json:"id"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Payer struct {
		PayerID string `json:"payer_id"`
	} `json:"payer"`
	UpdateTime *time.Time `json:"update_time"`
}

func (r *orderResponse) toOrder() (*Order, error) {
	o := &Order{
		ID:        r.ID,
		Status:    r.Status,
		PayerID:   r.Payer.PayerID,
		UpdatedAt: r.UpdateTime,
	}
	if len(r.PurchaseUnits) > 0 {
		unit := r.PurchaseUnits[0]
		amount, err := decimal.NewFromString(unit.Amount.Value)
		if err != nil {
			return nil, fmt.Errorf("toOrder: amount %q: %w", unit.Amount.Value, err)
		}
		o.Amount = amount
		o.Currency = unit.Amount.CurrencyCode
		if len(unit.Payments.Captures) > 0 {
			o.CaptureID = unit.Payments.Captures[0].ID
		}
	}
	return o, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("token: build request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token: status %d: %s", resp.StatusCode, detail)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("token: decode: %w", err)
	}

	c.accessToken = payload.AccessToken
	// Renew a minute early to avoid racing expiry on in-flight calls.
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn-60) * time.Second)
	return c.accessToken, nil
}
