// Package webhook receives Razorpay's asynchronous server-to-server
// notifications and reconciles order state from them. Deliveries are
// at-least-once: the same event may arrive any number of times, in any
// order relative to the client's own verification call.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/bytebyteboot/payment-gateway/pkg/common"
	"github.com/bytebyteboot/payment-gateway/pkg/logger"
	"github.com/bytebyteboot/payment-gateway/pkg/order"
	"github.com/bytebyteboot/payment-gateway/pkg/signature"
)

type IOrderService interface {
	MarkPaid(ctx context.Context, razorpayOrderID, razorpayPaymentID string) (*order.Order, error)
	MarkFailed(ctx context.Context, razorpayOrderID string) (*order.Order, error)
}

type Handler struct {
	service       IOrderService
	webhookSecret string
}

func NewWebhookHandler(s IOrderService, webhookSecret string) *Handler {
	return &Handler{
		service:       s,
		webhookSecret: webhookSecret,
	}
}

const (
	eventPaymentCaptured = "payment.captured"
	eventPaymentFailed   = "payment.failed"
)

// event mirrors the slice of Razorpay's webhook body this service
// cares about.
type event struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleRazorpay verifies the delivery against the webhook secret and
// applies the matching transition. The signature covers the raw body
// bytes, so they are read before any parsing and never re-serialized.
// Only a bad signature or an unparsable body returns 400: Razorpay
// treats every non-2xx as an invitation to redeliver forever.
func (h Handler) HandleRazorpay(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Log(ctx).Errorf("webhook: failed reading request body: %v", err)
		common.WriteMsg(w, "can't read webhook body", http.StatusBadRequest)
		return
	}

	if !signature.Verify(rawBody, r.Header.Get("X-Signature"), h.webhookSecret) {
		logger.Log(ctx).Errorf("webhook: signature check failed")
		common.WriteMsg(w, "invalid webhook signature", http.StatusBadRequest)
		return
	}

	evt := new(event)
	if err := json.Unmarshal(rawBody, evt); err != nil {
		logger.Log(ctx).Errorf("webhook: failed parsing payload: %v", err)
		common.WriteMsg(w, "malformed webhook payload", http.StatusBadRequest)
		return
	}
	entity := evt.Payload.Payment.Entity
	if evt.Event == "" || entity.OrderID == "" || entity.ID == "" {
		logger.Log(ctx).Errorf("webhook: payload misses event, order id or payment id")
		common.WriteMsg(w, "malformed webhook payload", http.StatusBadRequest)
		return
	}

	switch evt.Event {
	case eventPaymentCaptured:
		_, err = h.service.MarkPaid(ctx, entity.OrderID, entity.ID)
	case eventPaymentFailed:
		_, err = h.service.MarkFailed(ctx, entity.OrderID)
	default:
		logger.Log(ctx).Warnf("webhook: unhandled event `%s` for order `%s`", evt.Event, entity.OrderID)
	}

	if err != nil {
		// The order may belong to another environment, the event may be
		// a replay against a finalized order. Acknowledge and log: an
		// error response only triggers redelivery of the same event.
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			logger.Log(ctx).Warnf("webhook: event `%s` for unknown order `%s`", evt.Event, entity.OrderID)
		case errors.Is(err, order.ErrInvalidTransition),
			errors.Is(err, order.ErrPaymentMismatch),
			errors.Is(err, order.ErrConcurrentUpdate):
			logger.Log(ctx).Warnf("webhook: event `%s` for order `%s` not applied: %v",
				evt.Event, entity.OrderID, err)
		default:
			logger.Log(ctx).Errorf("webhook: failed processing event `%s` for order `%s`: %v",
				evt.Event, entity.OrderID, err)
			common.WriteMsg(w, "webhook processing failed", http.StatusInternalServerError)
			return
		}
	}

	common.WriteRespJSON(w, map[string]string{"status": "ok"})
}
