package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bytebyteboot/payment-gateway/pkg/common"
	"github.com/bytebyteboot/payment-gateway/pkg/logger"
	"github.com/bytebyteboot/payment-gateway/pkg/order"
)

type IOrderService interface {
	CreateOrder(ctx context.Context, req *order.CreateOrderRequest) (*order.Order, error)
	VerifyPayment(ctx context.Context, razorpayOrderID, razorpayPaymentID, clientSignature string) (*order.Order, error)
	Cancel(ctx context.Context, razorpayOrderID string) (*order.Order, error)
	GetOrder(ctx context.Context, razorpayOrderID string) (*order.Order, error)
	GetOrders(ctx context.Context, status, email string) ([]*order.Order, error)
}

type OrderHandler struct {
	service IOrderService
}

func NewOrderHandler(s IOrderService) *OrderHandler {
	return &OrderHandler{
		service: s,
	}
}

func (oh OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	req := new(order.CreateOrderRequest)
	if err := common.ParseReqBody(r.Body, req); err != nil {
		logger.Log(r.Context()).Errorf("order/api: can't parse create-order request: %v", err)
		common.WriteMsg(w, "bad request format", http.StatusBadRequest)
		return
	}

	o, err := oh.service.CreateOrder(r.Context(), req)
	if err != nil {
		logger.Log(r.Context()).Errorf("order/api: failed creating order: %v", err)
		writeOrderError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	common.WriteRespJSON(w, o)
}

func (oh OrderHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	req := struct {
		RazorpayOrderID   string `json:"razorpayOrderId"`
		RazorpayPaymentID string `json:"razorpayPaymentId"`
		RazorpaySignature string `json:"razorpaySignature"`
	}{}
	if err := common.ParseReqBody(r.Body, &req); err != nil {
		logger.Log(r.Context()).Errorf("order/api: can't parse verification request: %v", err)
		common.WriteMsg(w, "bad request format", http.StatusBadRequest)
		return
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		common.WriteMsg(w, "orderId, paymentId and signature are required", http.StatusBadRequest)
		return
	}

	o, err := oh.service.VerifyPayment(r.Context(), req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		logger.Log(r.Context()).Errorf("order/api: payment verification failed for `%s`: %v",
			req.RazorpayOrderID, err)
		writeOrderError(w, err)
		return
	}
	common.WriteRespJSON(w, o)
}

func (oh OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	orderID := mux.Vars(r)["orderId"]
	o, err := oh.service.GetOrder(r.Context(), orderID)
	if errors.Is(err, order.ErrOrderNotFound) {
		common.WriteMsg(w, "payment order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log(r.Context()).Errorf("order/api: can't get order `%s`: %v", orderID, err)
		writeOrderError(w, err)
		return
	}
	common.WriteRespJSON(w, o)
}

func (oh OrderHandler) GetOrdersList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	orders, err := oh.service.GetOrders(r.Context(),
		r.URL.Query().Get("status"), r.URL.Query().Get("email"))
	if err != nil {
		logger.Log(r.Context()).Errorf("order/api: can't list orders: %v", err)
		writeOrderError(w, err)
		return
	}
	common.WriteRespJSON(w, orders)
}

func (oh OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	orderID := mux.Vars(r)["orderId"]
	o, err := oh.service.Cancel(r.Context(), orderID)
	if errors.Is(err, order.ErrInvalidTransition) {
		common.WriteMsg(w, "cannot cancel a paid order", http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Log(r.Context()).Errorf("order/api: can't cancel order `%s`: %v", orderID, err)
		writeOrderError(w, err)
		return
	}
	common.WriteRespJSON(w, o)
}

// writeOrderError maps service errors onto the HTTP error taxonomy.
func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrInvalidAmount),
		errors.Is(err, order.ErrReceiptMissing),
		errors.Is(err, order.ErrInvalidEmail),
		errors.Is(err, order.ErrInvalidPhone),
		errors.Is(err, order.ErrInvalidSignature),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrDuplicateOrder),
		errors.Is(err, order.ErrOrderNotFound):
		common.WriteMsg(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, order.ErrPaymentMismatch),
		errors.Is(err, order.ErrConcurrentUpdate):
		common.WriteMsg(w, err.Error(), http.StatusConflict)
	case errors.Is(err, order.ErrUpstream):
		common.WriteMsg(w, err.Error(), http.StatusBadGateway)
	default:
		common.WriteMsg(w, "internal error", http.StatusInternalServerError)
	}
}
