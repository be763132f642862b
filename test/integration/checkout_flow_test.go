package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogpg "github.com/salehm/coaching-store/internal/catalog/infrastructure/postgres"
	checkoutapp "github.com/salehm/coaching-store/internal/checkout/application"
	"github.com/salehm/coaching-store/internal/checkout/domain"
	checkoutpg "github.com/salehm/coaching-store/internal/checkout/infrastructure/postgres"
	"github.com/salehm/coaching-store/internal/database"
)

func TestCheckoutFlow(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run container-backed tests")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, database.Migrate(ctx, pool))
	seed(t, ctx, pool)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalogRepo := catalogpg.NewRepository(log, pool)
	orderRepo := checkoutpg.NewRepository(log, pool)
	svc := checkoutapp.NewService(log, catalogRepo, orderRepo)

	in := checkoutapp.CreateOrderInput{
		Customer: checkoutapp.CheckoutCustomer{
			FirstName: "سالم", LastName: "المطيري",
			Email: "salem@example.com", Phone: "+966500000000",
		},
		Items: []checkoutapp.CheckoutItem{{ProductID: "p-book", Quantity: 2}},
		Shipping: checkoutapp.CheckoutShipping{
			MethodID: "standard",
			Address:  domain.Address{Street: "شارع التحلية", City: "الرياض", Country: "SA"},
		},
		PaymentMethod: "creditcard",
		CouponCode:    "save10",
	}

	res, err := svc.CreateOrder(ctx, in)
	require.NoError(t, err)

	// 2 x 100 SAR - 10% coupon, 25 SAR shipping, 15% VAT on the discounted base
	assert.Equal(t, int64(20000), res.Totals.Subtotal)
	assert.Equal(t, int64(2000), res.Totals.Discount)
	assert.Equal(t, int64(2500), res.Totals.ShippingCost)
	assert.Equal(t, int64(2700), res.Totals.Tax)
	assert.Equal(t, int64(23200), res.Totals.Total)

	t.Run("stock decremented atomically", func(t *testing.T) {
		var stock int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT stock_quantity FROM products WHERE id = 'p-book'`).Scan(&stock))
		assert.Equal(t, 3, stock)
	})

	t.Run("coupon usage incremented", func(t *testing.T) {
		var used int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT times_used FROM coupons WHERE code = 'SAVE10'`).Scan(&used))
		assert.Equal(t, 1, used)
	})

	t.Run("order.created event staged in outbox", func(t *testing.T) {
		var n int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM outbox WHERE type = 'order.created' AND aggregate_id = $1`,
			res.OrderID).Scan(&n))
		assert.Equal(t, 1, n)
	})

	t.Run("persisted order matches the result", func(t *testing.T) {
		o, err := orderRepo.Order(ctx, res.OrderID)
		require.NoError(t, err)
		assert.Equal(t, res.Totals.Total, o.Total)
		assert.Equal(t, domain.StatusPending, o.Status)
		assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
		require.Len(t, o.Items, 1)
		assert.Equal(t, 2, o.Items[0].Quantity)
	})

	t.Run("mark paid is idempotent", func(t *testing.T) {
		require.NoError(t, orderRepo.MarkPaid(ctx, res.OrderID, "pay_1"))
		o, err := orderRepo.Order(ctx, res.OrderID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
		assert.Equal(t, domain.StatusProcessing, o.Status)
		require.NotNil(t, o.PaidAt)
		firstPaidAt := *o.PaidAt

		// replayed confirmation changes nothing and stages no second event
		require.NoError(t, orderRepo.MarkPaid(ctx, res.OrderID, "pay_1"))
		o, err = orderRepo.Order(ctx, res.OrderID)
		require.NoError(t, err)
		assert.True(t, o.PaidAt.Equal(firstPaidAt))

		var n int
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT count(*) FROM outbox WHERE type = 'order.paid' AND aggregate_id = $1`,
			res.OrderID).Scan(&n))
		assert.Equal(t, 1, n)
	})

	// A coupon that sells out between the service-level check and commit must
	// roll back the whole transaction. Simulate the race by driving the
	// repository directly against an exhausted row.
	t.Run("exhausted coupon rolls the order back", func(t *testing.T) {
		_, err := pool.Exec(ctx,
			`UPDATE coupons SET usage_limit = 1 WHERE code = 'SAVE10'`)
		require.NoError(t, err)

		var before int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&before))

		now := time.Now().UTC()
		couponID := "c-1"
		order := domain.Order{
			ID:            "o-race",
			OrderNumber:   domain.NewOrderNumber(now),
			CustomerEmail: "salem@example.com",
			Subtotal:      10000, Tax: 1500, Total: 11500,
			Status:        domain.StatusPending,
			PaymentStatus: domain.PaymentPending,
			CreatedAt:     now, UpdatedAt: now,
			Items: []domain.OrderItem{{
				ID: "oi-race", OrderID: "o-race", ProductID: "p-book",
				ProductName: "كتاب التدريب", Price: 10000, Quantity: 1, Subtotal: 10000,
			}},
		}
		cust := domain.Customer{Email: "salem@example.com"}
		dec := []checkoutapp.StockDecrement{{ProductID: "p-book", ProductName: "كتاب التدريب", Quantity: 1}}

		err = orderRepo.CreateOrder(ctx, &order, cust, &couponID, dec, domain.EventOrderCreated, []byte(`{}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCouponExhausted)

		var after, stock int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&after))
		assert.Equal(t, before, after, "failed checkout must not leave partial rows")
		require.NoError(t, pool.QueryRow(ctx,
			`SELECT stock_quantity FROM products WHERE id = 'p-book'`).Scan(&stock))
		assert.Equal(t, 3, stock, "stock untouched after rollback")
	})
}

func seed(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(ctx, `
		INSERT INTO products (id, name_ar, name_en, price, stock_quantity, track_inventory, sku, images, status)
		VALUES ('p-book', 'كتاب التدريب', 'Coaching Book', 10000, 5, true, 'BK-1', '["/img/book.jpg"]', 'active');

		INSERT INTO shipping_methods (id, name_ar, price, free_shipping_threshold, estimated_days_min, estimated_days_max, is_active)
		VALUES ('standard', 'شحن عادي', 2500, 50000, 2, 5, true);

		INSERT INTO coupons (id, code, discount_type, discount_value, minimum_order_amount, is_active)
		VALUES ('c-1', 'SAVE10', 'percentage', 10, 10000, true);
	`)
	require.NoError(t, err)
}
