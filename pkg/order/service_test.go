package order

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytebyteboot/payment-gateway/pkg/signature"
)

const testMerchantSecret = "rzp_test_secret"

type fakeRepo struct {
	store map[string]*Order
	// beforeUpdate runs just before the CAS check, standing in for a
	// concurrent writer slipping between read and write.
	beforeUpdate func(*fakeRepo)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{store: make(map[string]*Order)}
}

func (r *fakeRepo) GetByRazorpayOrderID(_ context.Context, id string) (*Order, error) {
	o, ok := r.store[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeRepo) Add(_ context.Context, o *Order) error {
	if _, ok := r.store[o.RazorpayOrderID]; ok {
		return ErrDuplicateOrder
	}
	o.ID = int64(len(r.store) + 1)
	cp := *o
	r.store[o.RazorpayOrderID] = &cp
	return nil
}

func (r *fakeRepo) Update(_ context.Context, o *Order, expectedStatus string) error {
	if r.beforeUpdate != nil {
		hook := r.beforeUpdate
		r.beforeUpdate = nil
		hook(r)
	}
	stored, ok := r.store[o.RazorpayOrderID]
	if !ok {
		return ErrOrderNotFound
	}
	if stored.Status != expectedStatus {
		return ErrOrderChanged
	}
	cp := *o
	r.store[o.RazorpayOrderID] = &cp
	return nil
}

func (r *fakeRepo) GetOrders(_ context.Context) ([]*Order, error) {
	out := []*Order{}
	for _, o := range r.store {
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeRepo) GetByStatus(ctx context.Context, status string) ([]*Order, error) {
	all, _ := r.GetOrders(ctx)
	out := []*Order{}
	for _, o := range all {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetByCustomerEmail(ctx context.Context, email string) ([]*Order, error) {
	all, _ := r.GetOrders(ctx)
	out := []*Order{}
	for _, o := range all {
		if o.CustomerEmail == email {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeProvider struct {
	lastAmountMinor int64
	lastCurrency    string
	nextID          string
	err             error
	calls           int
}

func (p *fakeProvider) CreateOrder(_ context.Context, amountMinor int64, currency, _, _ string) (string, error) {
	p.calls++
	p.lastAmountMinor = amountMinor
	p.lastCurrency = currency
	if p.err != nil {
		return "", p.err
	}
	if p.nextID == "" {
		return fmt.Sprintf("order_fake%d", p.calls), nil
	}
	return p.nextID, nil
}

func setup() (*service, *fakeRepo, *fakeProvider) {
	repo := newFakeRepo()
	provider := &fakeProvider{}
	svc := NewService(repo, provider, testMerchantSecret, "INR")
	return svc, repo, provider
}

func seedOrder(repo *fakeRepo, status, paymentID string) *Order {
	o := &Order{
		RazorpayOrderID:   "order_seed1",
		RazorpayPaymentID: paymentID,
		Amount:            decimal.NewFromInt(500),
		Currency:          "INR",
		Receipt:           "rcpt-seed",
		Status:            status,
	}
	repo.store[o.RazorpayOrderID] = o
	return o
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount string
		want   int64
	}{
		{"499.99", 49999},
		{"499.995", 49999}, // sub-paise fraction truncates, never rounds
		{"1", 100},
		{"0.009", 0},
		{"100.50", 10050},
	}
	for _, c := range cases {
		amount, err := decimal.NewFromString(c.amount)
		require.NoError(t, err)
		assert.Equalf(t, c.want, MinorUnits(amount), "minor units of %s", c.amount)
	}
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, repo, provider := setup()
		provider.nextID = "order_MkWq9vCron1noR"

		o, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			Amount:        decimal.RequireFromString("499.99"),
			Receipt:       "rcpt-1",
			CustomerEmail: "buyer@example.com",
			CustomerPhone: "+919876543210",
		})
		require.NoError(t, err)

		assert.Equal(t, "order_MkWq9vCron1noR", o.RazorpayOrderID)
		assert.Equal(t, CREATED, o.Status)
		assert.Equal(t, "INR", o.Currency) // defaulted from config
		assert.Equal(t, int64(49999), provider.lastAmountMinor)
		assert.Contains(t, repo.store, "order_MkWq9vCron1noR")
	})

	t.Run("upstream failure writes nothing", func(t *testing.T) {
		svc, repo, provider := setup()
		provider.err = errors.New("connection refused")

		_, err := svc.CreateOrder(ctx, &CreateOrderRequest{
			Amount:  decimal.NewFromInt(100),
			Receipt: "rcpt-2",
		})
		assert.ErrorIs(t, err, ErrUpstream)
		assert.Empty(t, repo.store)
	})

	t.Run("validation", func(t *testing.T) {
		svc, _, _ := setup()

		_, err := svc.CreateOrder(ctx, &CreateOrderRequest{Amount: decimal.Zero, Receipt: "r"})
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = svc.CreateOrder(ctx, &CreateOrderRequest{Amount: decimal.NewFromInt(-5), Receipt: "r"})
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = svc.CreateOrder(ctx, &CreateOrderRequest{Amount: decimal.NewFromInt(5)})
		assert.ErrorIs(t, err, ErrReceiptMissing)

		_, err = svc.CreateOrder(ctx, &CreateOrderRequest{
			Amount: decimal.NewFromInt(5), Receipt: "r", CustomerEmail: "not-an-email",
		})
		assert.ErrorIs(t, err, ErrInvalidEmail)

		_, err = svc.CreateOrder(ctx, &CreateOrderRequest{
			Amount: decimal.NewFromInt(5), Receipt: "r", CustomerPhone: "12ab",
		})
		assert.ErrorIs(t, err, ErrInvalidPhone)
	})

	t.Run("duplicate remote id", func(t *testing.T) {
		svc, _, provider := setup()
		provider.nextID = "order_dup"

		req := &CreateOrderRequest{Amount: decimal.NewFromInt(10), Receipt: "r"}
		_, err := svc.CreateOrder(ctx, req)
		require.NoError(t, err)
		_, err = svc.CreateOrder(ctx, req)
		assert.ErrorIs(t, err, ErrDuplicateOrder)
	})
}

func TestVerifyPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("valid signature marks paid", func(t *testing.T) {
		svc, repo, _ := setup()
		seedOrder(repo, CREATED, "")

		sig := signature.Sign([]byte("order_seed1|pay_1"), testMerchantSecret)
		o, err := svc.VerifyPayment(ctx, "order_seed1", "pay_1", sig)
		require.NoError(t, err)

		assert.Equal(t, PAID, o.Status)
		assert.Equal(t, "pay_1", o.RazorpayPaymentID)
		assert.Equal(t, sig, o.RazorpaySignature)
		assert.Equal(t, PAID, repo.store["order_seed1"].Status)
	})

	t.Run("bad signature mutates nothing", func(t *testing.T) {
		svc, repo, _ := setup()
		seedOrder(repo, CREATED, "")

		_, err := svc.VerifyPayment(ctx, "order_seed1", "pay_1", "deadbeef")
		assert.ErrorIs(t, err, ErrInvalidSignature)
		assert.Equal(t, CREATED, repo.store["order_seed1"].Status)
	})

	t.Run("unknown order", func(t *testing.T) {
		svc, _, _ := setup()
		sig := signature.Sign([]byte("order_nope|pay_1"), testMerchantSecret)
		_, err := svc.VerifyPayment(ctx, "order_nope", "pay_1", sig)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent replay", func(t *testing.T) {
		svc, repo, _ := setup()
		seedOrder(repo, CREATED, "")

		first, err := svc.MarkPaid(ctx, "order_seed1", "pay_1")
		require.NoError(t, err)
		second, err := svc.MarkPaid(ctx, "order_seed1", "pay_1")
		require.NoError(t, err)

		assert.Equal(t, first.Status, second.Status)
		assert.Equal(t, first.RazorpayPaymentID, second.RazorpayPaymentID)
	})

	t.Run("different payment id on paid order", func(t *testing.T) {
		svc, repo, _ := setup()
		seedOrder(repo, PAID, "pay_1")

		_, err := svc.MarkPaid(ctx, "order_seed1", "pay_2")
		assert.ErrorIs(t, err, ErrPaymentMismatch)
		assert.Equal(t, "pay_1", repo.store["order_seed1"].RazorpayPaymentID)
	})

	t.Run("legal from attempted", func(t *testing.T) {
		svc, repo, _ := setup()
		seedOrder(repo, ATTEMPTED, "")

		o, err := svc.MarkPaid(ctx, "order_seed1", "pay_1")
		require.NoError(t, err)
		assert.Equal(t, PAID, o.Status)
	})
}

// Every transition from every state: legal ones succeed, the rest fail
// with ErrInvalidTransition, terminal replays are no-ops.
func TestStateMachineClosure(t *testing.T) {
	ctx := context.Background()

	type attempt func(svc *service) error
	markPaid := func(svc *service) error {
		_, err := svc.MarkPaid(ctx, "order_seed1", "pay_new")
		return err
	}
	markFailed := func(svc *service) error {
		_, err := svc.MarkFailed(ctx, "order_seed1")
		return err
	}
	cancel := func(svc *service) error {
		_, err := svc.Cancel(ctx, "order_seed1")
		return err
	}

	cases := []struct {
		name      string
		from      string
		paymentID string
		op        attempt
		wantErr   error
	}{
		{"paid from created", CREATED, "", markPaid, nil},
		{"paid from attempted", ATTEMPTED, "", markPaid, nil},
		{"paid from failed", FAILED, "", markPaid, ErrInvalidTransition},
		{"paid from cancelled", CANCELLED, "", markPaid, ErrInvalidTransition},
		{"paid replay same id", PAID, "pay_new", markPaid, nil},
		{"paid replay other id", PAID, "pay_old", markPaid, ErrPaymentMismatch},

		{"failed from created", CREATED, "", markFailed, nil},
		{"failed from attempted", ATTEMPTED, "", markFailed, nil},
		{"failed from paid", PAID, "pay_old", markFailed, ErrInvalidTransition},
		{"failed from failed", FAILED, "", markFailed, ErrInvalidTransition},
		{"failed from cancelled", CANCELLED, "", markFailed, ErrInvalidTransition},

		{"cancel from created", CREATED, "", cancel, nil},
		{"cancel from attempted", ATTEMPTED, "", cancel, nil},
		{"cancel from paid", PAID, "pay_old", cancel, ErrInvalidTransition},
		{"cancel from failed", FAILED, "", cancel, ErrInvalidTransition},
		{"cancel from cancelled", CANCELLED, "", cancel, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			svc, repo, _ := setup()
			seedOrder(repo, c.from, c.paymentID)

			err := c.op(svc)
			if c.wantErr != nil {
				assert.ErrorIs(t, err, c.wantErr)
				assert.Equal(t, c.from, repo.store["order_seed1"].Status, "order must be unchanged")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConcurrentTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("late cancel loses to paid", func(t *testing.T) {
		svc, repo, _ := setup()
		seedOrder(repo, CREATED, "")

		// A webhook marks the order paid between the cancel's read and
		// its compare-and-swap write.
		repo.beforeUpdate = func(r *fakeRepo) {
			o := r.store["order_seed1"]
			o.Status = PAID
			o.RazorpayPaymentID = "pay_webhook"
		}

		_, err := svc.Cancel(ctx, "order_seed1")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, PAID, repo.store["order_seed1"].Status)
	})

	t.Run("retry after conflict converges", func(t *testing.T) {
		svc, repo, _ := setup()
		seedOrder(repo, CREATED, "")

		// A concurrent writer moves CREATED to ATTEMPTED; the retry
		// re-reads and the transition is still legal.
		repo.beforeUpdate = func(r *fakeRepo) {
			r.store["order_seed1"].Status = ATTEMPTED
		}

		o, err := svc.MarkPaid(ctx, "order_seed1", "pay_1")
		require.NoError(t, err)
		assert.Equal(t, PAID, o.Status)
	})

	t.Run("second conflict surfaces", func(t *testing.T) {
		svc, repo, _ := setup()
		seedOrder(repo, CREATED, "")

		var hook func(r *fakeRepo)
		hook = func(r *fakeRepo) {
			// Keep flipping the status so every CAS attempt loses.
			o := r.store["order_seed1"]
			if o.Status == CREATED {
				o.Status = ATTEMPTED
			} else {
				o.Status = CREATED
			}
			r.beforeUpdate = hook
		}
		repo.beforeUpdate = hook

		_, err := svc.MarkPaid(ctx, "order_seed1", "pay_1")
		assert.ErrorIs(t, err, ErrConcurrentUpdate)
	})
}

func TestGetOrders(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := setup()

	repo.store["order_a"] = &Order{RazorpayOrderID: "order_a", Status: PAID, CustomerEmail: "a@example.com"}
	repo.store["order_b"] = &Order{RazorpayOrderID: "order_b", Status: CREATED, CustomerEmail: "b@example.com"}

	all, err := svc.GetOrders(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	paid, err := svc.GetOrders(ctx, "paid", "")
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, "order_a", paid[0].RazorpayOrderID)

	byEmail, err := svc.GetOrders(ctx, "", "b@example.com")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "order_b", byEmail[0].RazorpayOrderID)
}
