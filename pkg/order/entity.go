package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                int64           `json:"id"`
	RazorpayOrderID   string          `json:"razorpayOrderId"`
	RazorpayPaymentID string          `json:"razorpayPaymentId,omitempty"`
	RazorpaySignature string          `json:"-"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Receipt           string          `json:"receipt"`
	Status            string          `json:"status"`
	CustomerEmail     string          `json:"customerEmail,omitempty"`
	CustomerPhone     string          `json:"customerPhone,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt,omitempty"`
}

const (
	CREATED   = "CREATED"
	ATTEMPTED = "ATTEMPTED"
	PAID      = "PAID"
	FAILED    = "FAILED"
	CANCELLED = "CANCELLED"
)

// Terminal reports whether no transition may leave the status.
func Terminal(status string) bool {
	return status == PAID || status == FAILED || status == CANCELLED
}
