package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brybell/backend/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetByTracking(ctx context.Context, trackingNumber string) (*model.Order, error)
	ListByUser(ctx context.Context, userID int64, skip, limit int) ([]model.Order, error)
	List(ctx context.Context, status model.OrderStatus, skip, limit int) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error
	SetPaymentStatus(ctx context.Context, id int64, payment model.PaymentStatus, status model.OrderStatus) error
	Cancel(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*model.OrderStats, error)
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

// Create inserts the order and all of its items in one transaction.
func (r *pgOrderRepo) Create(ctx context.Context, order *model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, total_amount, status, payment_status, shipping_address, phone_number, tracking_number, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		order.UserID, order.TotalAmount, order.Status, order.PaymentStatus,
		order.ShippingAddress, order.PhoneNumber, order.TrackingNumber,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, price, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id, created_at`,
			order.ID, order.Items[i].ProductID, order.Items[i].ProductName,
			order.Items[i].Quantity, order.Items[i].Price,
		).Scan(&order.Items[i].ID, &order.Items[i].CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit(ctx)
}

const orderColumns = `id, user_id, total_amount, status, payment_status,
	COALESCE(shipping_address, ''), COALESCE(phone_number, ''), tracking_number, created_at, updated_at`

func scanOrder(row pgx.Row, o *model.Order) error {
	return row.Scan(
		&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.PaymentStatus,
		&o.ShippingAddress, &o.PhoneNumber, &o.TrackingNumber, &o.CreatedAt, &o.UpdatedAt,
	)
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	order := &model.Order{}
	err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id,
	), order)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := r.loadItems(ctx, []*model.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *pgOrderRepo) GetByTracking(ctx context.Context, trackingNumber string) (*model.Order, error) {
	order := &model.Order{}
	err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tracking_number = $1`, trackingNumber,
	), order)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order by tracking: %w", err)
	}

	if err := r.loadItems(ctx, []*model.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *pgOrderRepo) ListByUser(ctx context.Context, userID int64, skip, limit int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1
		 ORDER BY created_at DESC OFFSET $2 LIMIT $3`,
		userID, skip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders by user: %w", err)
	}
	return r.collectOrders(ctx, rows)
}

func (r *pgOrderRepo) List(ctx context.Context, status model.OrderStatus, skip, limit int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC OFFSET $2 LIMIT $3`,
		string(status), skip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return r.collectOrders(ctx, rows)
}

func (r *pgOrderRepo) collectOrders(ctx context.Context, rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	refs := make([]*model.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	if err := r.loadItems(ctx, refs); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *pgOrderRepo) loadItems(ctx context.Context, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*model.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, COALESCE(product_name, ''), quantity, price, created_at
		 FROM order_items WHERE order_id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price, &item.CreatedAt); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o := byID[item.OrderID]
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetPaymentStatus writes the payment status and the (possibly auto-advanced)
// order status in a single UPDATE.
func (r *pgOrderRepo) SetPaymentStatus(ctx context.Context, id int64, payment model.PaymentStatus, status model.OrderStatus) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_status = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, payment, status,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Cancel re-checks the cancel guard inside the UPDATE so a concurrent status
// change cannot slip a completed order into cancelled.
func (r *pgOrderRepo) Cancel(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW()
		 WHERE id = $1 AND status IN ($3, $4)`,
		id, model.OrderStatusCancelled, model.OrderStatusPending, model.OrderStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgOrderRepo) Stats(ctx context.Context) (*model.OrderStats, error) {
	stats := &model.OrderStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = $1),
		        COUNT(*) FILTER (WHERE status = $2),
		        COUNT(*) FILTER (WHERE status = $3),
		        COALESCE(SUM(total_amount) FILTER (WHERE payment_status = $4), 0)
		 FROM orders`,
		model.OrderStatusPending, model.OrderStatusProcessing, model.OrderStatusCompleted, model.PaymentStatusPaid,
	).Scan(&stats.TotalOrders, &stats.PendingOrders, &stats.ProcessingOrders, &stats.CompletedOrders, &stats.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	return stats, nil
}
