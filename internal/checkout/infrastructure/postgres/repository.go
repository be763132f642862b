package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salehm/coaching-store/internal/checkout/application"
	"github.com/salehm/coaching-store/internal/checkout/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// CreateOrder persists the whole checkout result in one transaction: customer
// upsert, order row, items, conditional stock decrements, conditional coupon
// usage increment and the order.created outbox row. Any failure rolls the
// entire order back.
func (r *Repository) CreateOrder(ctx context.Context, o *domain.Order, cust domain.Customer, couponID *string, decrements []application.StockDecrement, eventType string, payload []byte) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var customerID string
	err = tx.QueryRow(ctx, `INSERT INTO customers (id, email, phone, first_name, last_name)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id`,
		uuid.NewString(), cust.Email, cust.Phone, cust.FirstName, cust.LastName,
	).Scan(&customerID)
	if err != nil {
		return err
	}
	o.CustomerID = customerID

	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `INSERT INTO orders (
			id, order_number, customer_id, customer_email, customer_phone, customer_name,
			shipping_address, subtotal, shipping_cost, tax, discount, total,
			coupon_code, status, payment_method, payment_status,
			shipping_method, shipping_company, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		o.ID, o.OrderNumber, o.CustomerID, o.CustomerEmail, o.CustomerPhone, o.CustomerName,
		address, o.Subtotal, o.ShippingCost, o.Tax, o.Discount, o.Total,
		o.CouponCode, o.Status, o.PaymentMethod, o.PaymentStatus,
		o.ShippingMethod, o.ShippingCompany, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (id, order_id, product_id, product_name, product_sku, product_image, price, quantity, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			item.ID, o.ID, item.ProductID, item.ProductName, item.ProductSKU,
			item.ProductImage, item.Price, item.Quantity, item.Subtotal)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	// Conditional decrements close the check-then-act stock race: the guard
	// re-checks availability at write time.
	for _, d := range decrements {
		ct, err := tx.Exec(ctx, `UPDATE products
			SET stock_quantity = stock_quantity - $2, updated_at = now()
			WHERE id = $1 AND stock_quantity >= $2`,
			d.ProductID, d.Quantity)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return &domain.InsufficientStockError{
				ProductID:   d.ProductID,
				ProductName: d.ProductName,
				Requested:   d.Quantity,
			}
		}
	}

	if couponID != nil {
		ct, err := tx.Exec(ctx, `UPDATE coupons
			SET times_used = times_used + 1
			WHERE id = $1 AND is_active = true
			AND (usage_limit IS NULL OR times_used < usage_limit)`,
			*couponID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return domain.ErrCouponExhausted
		}
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"order", o.ID, eventType, payload, map[string]string{"source": "storefront"}, "")
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// MarkPaid is the single reconciliation write, shared by the webhook and the
// verify poll. The payment_status guard makes it idempotent: duplicates
// affect zero rows and emit no event. The first successful transition also
// advances a pending order to processing.
func (r *Repository) MarkPaid(ctx context.Context, orderID, transactionID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `UPDATE orders SET
			payment_status = 'paid',
			payment_transaction_id = $2,
			paid_at = now(),
			status = CASE WHEN status = 'pending' THEN 'processing' ELSE status END,
			updated_at = now()
		WHERE id = $1 AND payment_status <> 'paid'`,
		orderID, transactionID)
	if err != nil {
		return err
	}

	if ct.RowsAffected() == 1 {
		payload, err := json.Marshal(domain.OrderPaid{OrderID: orderID, TransactionID: transactionID})
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
			VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
			"order", orderID, domain.EventOrderPaid, payload, map[string]string{"source": "storefront"}, "")
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

const orderColumns = `id, order_number, customer_id, customer_email, customer_phone, customer_name,
	shipping_address, subtotal, shipping_cost, tax, discount, total,
	coupon_code, status, payment_method, payment_status, payment_transaction_id,
	shipping_method, shipping_company, tracking_number,
	created_at, updated_at, paid_at, shipped_at, delivered_at`

func (r *Repository) Order(ctx context.Context, id string) (domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, product_name, product_sku, product_image, price, quantity, subtotal
		FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductSKU,
			&it.ProductImage, &it.Price, &it.Quantity, &it.Subtotal); err != nil {
			return domain.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// OrderByTracking resolves an order by its shipment tracking number. Items are
// not loaded; tracking only needs the fulfillment fields.
func (r *Repository) OrderByTracking(ctx context.Context, trackingNumber string) (domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE tracking_number = $1`, trackingNumber)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) List(ctx context.Context, f application.OrderFilter) ([]domain.Order, int, error) {
	where := ""
	args := []any{}
	if f.Status != "" {
		where = " WHERE status = $1"
		args = append(args, f.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, current, next domain.Status, trackingNumber *string) (domain.Order, error) {
	row := r.pool.QueryRow(ctx, `UPDATE orders SET
			status = $3,
			tracking_number = COALESCE($4, tracking_number),
			shipped_at = CASE WHEN $3 = 'shipped' THEN now() ELSE shipped_at END,
			delivered_at = CASE WHEN $3 = 'delivered' THEN now() ELSE delivered_at END,
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+orderColumns,
		id, current, next, trackingNumber)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the order is gone or its status moved underneath us.
			return domain.Order{}, &domain.InvalidTransitionError{From: current, To: next}
		}
		return domain.Order{}, err
	}
	return o, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	var address []byte
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerEmail, &o.CustomerPhone, &o.CustomerName,
		&address, &o.Subtotal, &o.ShippingCost, &o.Tax, &o.Discount, &o.Total,
		&o.CouponCode, &o.Status, &o.PaymentMethod, &o.PaymentStatus, &o.PaymentTransactionID,
		&o.ShippingMethod, &o.ShippingCompany, &o.TrackingNumber,
		&o.CreatedAt, &o.UpdatedAt, &o.PaidAt, &o.ShippedAt, &o.DeliveredAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
			return domain.Order{}, err
		}
	}
	return o, nil
}
