package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Each service owns its schema and ensures it at startup.

const orderSchema = `
CREATE TABLE IF NOT EXISTS orders (
	id               BIGSERIAL PRIMARY KEY,
	user_id          BIGINT NOT NULL,
	total_amount     NUMERIC(12,2) NOT NULL,
	status           VARCHAR(50) NOT NULL DEFAULT 'pending',
	payment_status   VARCHAR(50) NOT NULL DEFAULT 'pending',
	shipping_address TEXT,
	phone_number     VARCHAR(20),
	tracking_number  VARCHAR(100) NOT NULL UNIQUE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at DESC);

CREATE TABLE IF NOT EXISTS order_items (
	id           BIGSERIAL PRIMARY KEY,
	order_id     BIGINT NOT NULL REFERENCES orders (id),
	product_id   BIGINT NOT NULL,
	product_name VARCHAR(255),
	quantity     INTEGER NOT NULL,
	price        NUMERIC(12,2) NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items (order_id);
`

const userSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	email         VARCHAR(255) NOT NULL UNIQUE,
	phone         VARCHAR(20) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	first_name    VARCHAR(100),
	last_name     VARCHAR(100),
	role          VARCHAR(20) NOT NULL DEFAULT 'customer',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const productSchema = `
CREATE TABLE IF NOT EXISTS products (
	id             BIGSERIAL PRIMARY KEY,
	name           VARCHAR(255) NOT NULL,
	description    TEXT,
	price          NUMERIC(12,2) NOT NULL,
	category       VARCHAR(100),
	brand          VARCHAR(100),
	stock_quantity INTEGER NOT NULL DEFAULT 0,
	image_url      TEXT,
	featured       BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products (category);
`

func EnsureOrderSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, orderSchema); err != nil {
		return fmt.Errorf("ensure order schema: %w", err)
	}
	return nil
}

func EnsureUserSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, userSchema); err != nil {
		return fmt.Errorf("ensure user schema: %w", err)
	}
	return nil
}

func EnsureProductSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, productSchema); err != nil {
		return fmt.Errorf("ensure product schema: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
