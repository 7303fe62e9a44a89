package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
)

const pgUniqueViolation = "23505"

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{
		db: db,
	}
}

const orderFields = `id, razorpay_order_id, razorpay_payment_id, razorpay_signature,
	amount, currency, receipt, status, customer_email, customer_phone, notes,
	created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*Order, error) {
	o := new(Order)
	var paymentID, sig, email, phone, notes sql.NullString
	var updatedAt sql.NullTime
	err := row.Scan(&o.ID, &o.RazorpayOrderID, &paymentID, &sig,
		&o.Amount, &o.Currency, &o.Receipt, &o.Status, &email, &phone, &notes,
		&o.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	o.RazorpayPaymentID = paymentID.String
	o.RazorpaySignature = sig.String
	o.CustomerEmail = email.String
	o.CustomerPhone = phone.String
	o.Notes = notes.String
	o.UpdatedAt = updatedAt.Time
	return o, nil
}

func (or *OrderRepo) GetByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*Order, error) {
	q := `SELECT ` + orderFields + ` FROM payment_orders WHERE razorpay_order_id = $1`
	o, err := scanOrder(or.db.QueryRowContext(ctx, q, razorpayOrderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order/repo: can't get order with razorpay id `%s`, %w", razorpayOrderID, err)
	}
	return o, nil
}

func (or *OrderRepo) Add(ctx context.Context, o *Order) error {
	o.CreatedAt = time.Now()
	err := or.db.QueryRowContext(ctx,
		`INSERT INTO payment_orders(razorpay_order_id, amount, currency, receipt,
			status, customer_email, customer_phone, notes, created_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		o.RazorpayOrderID, o.Amount, o.Currency, o.Receipt,
		o.Status, o.CustomerEmail, o.CustomerPhone, o.Notes, o.CreatedAt).Scan(&o.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("order/repo: failed inserting order, %w", err)
	}
	return nil
}

// Update writes the mutable order fields back, but only while the
// persisted status still equals expectedStatus. A concurrent writer that
// got there first makes the write fail with ErrOrderChanged.
func (or *OrderRepo) Update(ctx context.Context, o *Order, expectedStatus string) error {
	o.UpdatedAt = time.Now()
	res, err := or.db.ExecContext(ctx,
		`UPDATE payment_orders
		 SET razorpay_payment_id = $1, razorpay_signature = $2, status = $3, updated_at = $4
		 WHERE razorpay_order_id = $5 AND status = $6`,
		nullable(o.RazorpayPaymentID), nullable(o.RazorpaySignature), o.Status, o.UpdatedAt,
		o.RazorpayOrderID, expectedStatus)
	if err != nil {
		return fmt.Errorf("order/repo: failed updating order `%s`, %w", o.RazorpayOrderID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("order/repo: failed reading update result, %w", err)
	}
	if affected == 0 {
		// Either the status moved under us or the order is gone.
		if _, getErr := or.GetByRazorpayOrderID(ctx, o.RazorpayOrderID); getErr != nil {
			return getErr
		}
		return ErrOrderChanged
	}
	return nil
}

func (or *OrderRepo) GetOrders(ctx context.Context) ([]*Order, error) {
	q := `SELECT ` + orderFields + ` FROM payment_orders ORDER BY created_at DESC`
	return or.queryOrders(ctx, q)
}

func (or *OrderRepo) GetByStatus(ctx context.Context, status string) ([]*Order, error) {
	q := `SELECT ` + orderFields + ` FROM payment_orders WHERE status = $1 ORDER BY created_at DESC`
	return or.queryOrders(ctx, q, status)
}

func (or *OrderRepo) GetByCustomerEmail(ctx context.Context, email string) ([]*Order, error) {
	q := `SELECT ` + orderFields + ` FROM payment_orders WHERE customer_email = $1 ORDER BY created_at DESC`
	return or.queryOrders(ctx, q, email)
}

func (or *OrderRepo) queryOrders(ctx context.Context, q string, args ...interface{}) ([]*Order, error) {
	rows, err := or.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("order/repo: failed querying orders, %w", err)
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("order/repo: scan order row failed: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order/repo: failed iterating order rows, %w", err)
	}
	return orders, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
