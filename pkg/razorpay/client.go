// Package razorpay holds the thin client for the upstream processor:
// the only capability the gateway needs is creating a remote order.
package razorpay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bytebyteboot/payment-gateway/pkg/logger"
)

type Client struct {
	client *resty.Client
}

func NewClient(addr, keyID, keySecret string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("can't create cookie jar, %w", err)
	}
	c := resty.New().
		SetBaseURL(addr).
		SetCookieJar(jar).
		SetTimeout(timeout).
		SetBasicAuth(keyID, keySecret)

	return &Client{
		client: c,
	}, nil
}

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID string `json:"id"`
}

// CreateOrder asks Razorpay for a new order over the minor-unit amount
// and returns the remote order id.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt, notes string) (string, error) {
	body := orderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
	}
	if notes != "" {
		body.Notes = map[string]string{"notes": notes}
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v1/orders")
	if err != nil {
		logger.Log(ctx).Errorf("razorpay: failed sending create-order request, %v", err)
		return "", fmt.Errorf("razorpay: create order request failed, %w", err)
	}
	if resp.IsError() {
		logger.Log(ctx).Errorf("razorpay: create-order returned %d: %s", resp.StatusCode(), resp.Body())
		return "", fmt.Errorf("razorpay: create order returned status %d", resp.StatusCode())
	}

	remoteOrder := new(orderResponse)
	if err := json.Unmarshal(resp.Body(), remoteOrder); err != nil {
		return "", fmt.Errorf("razorpay: failed parsing create-order response, %w", err)
	}
	if remoteOrder.ID == "" {
		return "", fmt.Errorf("razorpay: create-order response has no order id")
	}
	return remoteOrder.ID, nil
}
