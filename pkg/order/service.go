package order

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bytebyteboot/payment-gateway/pkg/logger"
	"github.com/bytebyteboot/payment-gateway/pkg/signature"
)

type IOrderRepo interface {
	GetByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*Order, error)
	Add(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order, expectedStatus string) error
	GetOrders(ctx context.Context) ([]*Order, error)
	GetByStatus(ctx context.Context, status string) ([]*Order, error)
	GetByCustomerEmail(ctx context.Context, email string) ([]*Order, error)
}

// IProvider is the one capability needed from the payment processor:
// mint a remote order for the given minor-unit amount.
type IProvider interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt, notes string) (string, error)
}

type service struct {
	repo            IOrderRepo
	provider        IProvider
	merchantSecret  string
	defaultCurrency string
}

func NewService(r IOrderRepo, p IProvider, merchantSecret, defaultCurrency string) *service {
	return &service{
		repo:            r,
		provider:        p,
		merchantSecret:  merchantSecret,
		defaultCurrency: defaultCurrency,
	}
}

type CreateOrderRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Receipt       string          `json:"receipt"`
	CustomerEmail string          `json:"customerEmail"`
	CustomerPhone string          `json:"customerPhone"`
	Notes         string          `json:"notes"`
}

var (
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrReceiptMissing = errors.New("receipt is required")
	ErrInvalidEmail   = errors.New("customer email is not valid")
	ErrInvalidPhone   = errors.New("customer phone is not valid")
)

var phoneRe = regexp.MustCompile(`^[+]?[0-9]{10,15}$`)

func (req *CreateOrderRequest) validate() error {
	if !req.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if req.Receipt == "" {
		return ErrReceiptMissing
	}
	if req.CustomerEmail != "" && !strings.Contains(req.CustomerEmail, "@") {
		return ErrInvalidEmail
	}
	if req.CustomerPhone != "" && !phoneRe.MatchString(req.CustomerPhone) {
		return ErrInvalidPhone
	}
	return nil
}

// MinorUnits converts a decimal amount to the processor's integer
// representation: multiply by 100 and truncate. 499.995 becomes 49999.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Truncate(0).IntPart()
}

// CreateOrder mints a remote order upstream and persists the local
// record in CREATED. Nothing is written locally unless the processor
// confirmed a remote order id.
func (s *service) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	razorpayOrderID, err := s.provider.CreateOrder(ctx, MinorUnits(req.Amount), currency, req.Receipt, req.Notes)
	if err != nil {
		logger.Log(ctx).Errorf("order: failed creating razorpay order, %v", err)
		return nil, ErrUpstream
	}

	newOrder := &Order{
		RazorpayOrderID: razorpayOrderID,
		Amount:          req.Amount,
		Currency:        currency,
		Receipt:         req.Receipt,
		Status:          CREATED,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		Notes:           req.Notes,
	}
	if err := s.repo.Add(ctx, newOrder); err != nil {
		logger.Log(ctx).Errorf("order: failed persisting order `%s`, %v", razorpayOrderID, err)
		return nil, err
	}
	return newOrder, nil
}

// VerifyPayment is the synchronous client-callback path: the browser
// posts back what Razorpay handed it after checkout, signed with the
// merchant key secret over "{orderId}|{paymentId}".
func (s *service) VerifyPayment(ctx context.Context, razorpayOrderID, razorpayPaymentID, clientSignature string) (*Order, error) {
	payload := []byte(razorpayOrderID + "|" + razorpayPaymentID)
	if !signature.Verify(payload, clientSignature, s.merchantSecret) {
		logger.Log(ctx).Errorf("order: signature check failed for order `%s`", razorpayOrderID)
		return nil, ErrInvalidSignature
	}
	return s.markPaid(ctx, razorpayOrderID, razorpayPaymentID, clientSignature)
}

// MarkPaid records a captured payment against the order. Replaying the
// same payment id against an already paid order is a no-op success.
func (s *service) MarkPaid(ctx context.Context, razorpayOrderID, razorpayPaymentID string) (*Order, error) {
	return s.markPaid(ctx, razorpayOrderID, razorpayPaymentID, "")
}

func (s *service) markPaid(ctx context.Context, razorpayOrderID, razorpayPaymentID, clientSignature string) (*Order, error) {
	return s.transition(ctx, razorpayOrderID, func(o *Order) error {
		if o.Status == PAID {
			if o.RazorpayPaymentID == razorpayPaymentID {
				return errAlreadyDone
			}
			return ErrPaymentMismatch
		}
		if Terminal(o.Status) {
			return ErrInvalidTransition
		}
		if o.RazorpayPaymentID != "" && o.RazorpayPaymentID != razorpayPaymentID {
			return ErrPaymentMismatch
		}
		o.RazorpayPaymentID = razorpayPaymentID
		if clientSignature != "" {
			o.RazorpaySignature = clientSignature
		}
		o.Status = PAID
		return nil
	})
}

// MarkFailed records a failed payment attempt.
func (s *service) MarkFailed(ctx context.Context, razorpayOrderID string) (*Order, error) {
	return s.transition(ctx, razorpayOrderID, func(o *Order) error {
		if Terminal(o.Status) {
			return ErrInvalidTransition
		}
		o.Status = FAILED
		return nil
	})
}

// Cancel moves the order to CANCELLED. A paid order can't be cancelled;
// cancelling twice is a no-op success.
func (s *service) Cancel(ctx context.Context, razorpayOrderID string) (*Order, error) {
	return s.transition(ctx, razorpayOrderID, func(o *Order) error {
		if o.Status == CANCELLED {
			return errAlreadyDone
		}
		if Terminal(o.Status) {
			return ErrInvalidTransition
		}
		o.Status = CANCELLED
		return nil
	})
}

// errAlreadyDone marks an idempotent replay: the order is already in the
// requested state, nothing is written. Never leaves this package.
var errAlreadyDone = errors.New("transition already applied")

// transition re-reads the order, applies apply and persists the result
// with a compare-and-swap on the status read. A lost race re-reads and
// re-evaluates once; losing twice surfaces ErrConcurrentUpdate.
func (s *service) transition(ctx context.Context, razorpayOrderID string, apply func(*Order) error) (*Order, error) {
	for attempt := 0; ; attempt++ {
		o, err := s.repo.GetByRazorpayOrderID(ctx, razorpayOrderID)
		if err != nil {
			return nil, err
		}

		prevStatus := o.Status
		if err := apply(o); err != nil {
			if errors.Is(err, errAlreadyDone) {
				return o, nil
			}
			return nil, err
		}

		err = s.repo.Update(ctx, o, prevStatus)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrOrderChanged) {
			return nil, err
		}
		if attempt > 0 {
			logger.Log(ctx).Errorf("order: order `%s` keeps changing concurrently", razorpayOrderID)
			return nil, ErrConcurrentUpdate
		}
	}
}

func (s *service) GetOrder(ctx context.Context, razorpayOrderID string) (*Order, error) {
	return s.repo.GetByRazorpayOrderID(ctx, razorpayOrderID)
}

// GetOrders lists orders, optionally narrowed to one status or one
// customer email. Status wins when both filters are present.
func (s *service) GetOrders(ctx context.Context, status, email string) ([]*Order, error) {
	switch {
	case status != "":
		return s.repo.GetByStatus(ctx, strings.ToUpper(status))
	case email != "":
		return s.repo.GetByCustomerEmail(ctx, email)
	default:
		return s.repo.GetOrders(ctx)
	}
}
