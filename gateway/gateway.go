// Package gateway talks to the external payment gateway: order creation
// over HTTP and callback signature verification. The signature check is
// the sole fraud gate — a callback is never trusted without it.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mayurvchitte/lms-ci-cd/utils"
)

type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewFromEnv() *Client {
	timeout := time.Duration(utils.ParseIntDefault(os.Getenv("PAYMENT_GATEWAY_TIMEOUT_SECONDS"), 10)) * time.Second
	base := os.Getenv("PAYMENT_GATEWAY_URL")
	if base == "" {
		base = "https://api.razorpay.com"
	}
	return New(base, os.Getenv("PAYMENT_KEY_ID"), os.Getenv("PAYMENT_KEY_SECRET"), timeout)
}

func New(baseURL, keyID, keySecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		http:      &http.Client{Timeout: timeout},
	}
}

// KeyID is the public key the browser needs to open the payment UI.
func (c *Client) KeyID() string {
	return c.keyID
}

// Order is the gateway's order handle.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type orderRequest struct {
	Amount   int64  `json:"amount"` // minor currency units
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// CreateOrder registers an order with the gateway. The call is bounded
// by the client timeout; a failure is retryable by the caller.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	body, err := json.Marshal(orderRequest{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway order create: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway order create: status %d: %s", resp.StatusCode, msg)
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("gateway order decode: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("gateway order decode: missing order id")
	}
	return &order, nil
}

// VerifySignature recomputes the callback HMAC and compares it in
// constant time against the supplied hex signature.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(c.keySecret, orderID, paymentID, signature)
}

func VerifySignature(secret, orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
