package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema holds the full DDL for the storefront. Statements are idempotent so
// migrate can run against a live database.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	category_id TEXT,
	name_ar TEXT NOT NULL,
	name_en TEXT NOT NULL DEFAULT '',
	price BIGINT NOT NULL,
	sale_price BIGINT,
	stock_quantity INT NOT NULL DEFAULT 0,
	track_inventory BOOLEAN NOT NULL DEFAULT true,
	sku TEXT NOT NULL DEFAULT '',
	images JSONB NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'draft',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS shipping_methods (
	id TEXT PRIMARY KEY,
	name_ar TEXT NOT NULL,
	name_en TEXT NOT NULL DEFAULT '',
	company TEXT,
	price BIGINT NOT NULL,
	free_shipping_threshold BIGINT,
	estimated_days_min INT NOT NULL DEFAULT 1,
	estimated_days_max INT NOT NULL DEFAULT 5,
	display_order INT NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS coupons (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	discount_type TEXT NOT NULL,
	discount_value BIGINT NOT NULL,
	minimum_order_amount BIGINT NOT NULL DEFAULT 0,
	expires_at TIMESTAMPTZ,
	usage_limit INT,
	times_used INT NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	phone TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	order_number TEXT NOT NULL UNIQUE,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	customer_email TEXT NOT NULL,
	customer_phone TEXT NOT NULL DEFAULT '',
	customer_name TEXT NOT NULL DEFAULT '',
	shipping_address JSONB NOT NULL DEFAULT '{}',
	subtotal BIGINT NOT NULL,
	shipping_cost BIGINT NOT NULL,
	tax BIGINT NOT NULL,
	discount BIGINT NOT NULL,
	total BIGINT NOT NULL,
	coupon_code TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	payment_method TEXT NOT NULL DEFAULT '',
	payment_status TEXT NOT NULL DEFAULT 'pending',
	payment_transaction_id TEXT,
	shipping_method TEXT NOT NULL DEFAULT '',
	shipping_company TEXT,
	tracking_number TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	paid_at TIMESTAMPTZ,
	shipped_at TIMESTAMPTZ,
	delivered_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS order_items (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES orders(id),
	product_id TEXT NOT NULL,
	product_name TEXT NOT NULL,
	product_sku TEXT NOT NULL DEFAULT '',
	product_image TEXT,
	price BIGINT NOT NULL,
	quantity INT NOT NULL,
	subtotal BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS admins (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	full_name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'admin',
	is_active BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS outbox (
	id BIGSERIAL PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	type TEXT NOT NULL,
	payload JSONB NOT NULL,
	headers JSONB NOT NULL DEFAULT '{}',
	traceparent TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	relay_id TEXT,
	lease_until TIMESTAMPTZ,
	retry_count INT NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items (order_id);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox (status, id) WHERE status = 'pending';
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
