package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brybell/backend/internal/dto"
	"github.com/brybell/backend/internal/model"
)

type mockOrderRepo struct {
	orders map[int64]*model.Order
	nextID int64
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[int64]*model.Order), nextID: 1}
}

func (m *mockOrderRepo) Create(_ context.Context, order *model.Order) error {
	order.ID = m.nextID
	m.nextID++
	order.CreatedAt = time.Now()
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id int64) (*model.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetByTracking(_ context.Context, trackingNumber string) (*model.Order, error) {
	for _, o := range m.orders {
		if o.TrackingNumber == trackingNumber {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID int64, _, _ int) ([]model.Order, error) {
	var out []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) List(_ context.Context, status model.OrderStatus, _, _ int) ([]model.Order, error) {
	var out []model.Order
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id int64, status model.OrderStatus) error {
	o, ok := m.orders[id]
	if !ok {
		return pgx.ErrNoRows
	}
	o.Status = status
	return nil
}

func (m *mockOrderRepo) SetPaymentStatus(_ context.Context, id int64, payment model.PaymentStatus, status model.OrderStatus) error {
	o, ok := m.orders[id]
	if !ok {
		return pgx.ErrNoRows
	}
	o.PaymentStatus = payment
	o.Status = status
	return nil
}

func (m *mockOrderRepo) Cancel(_ context.Context, id int64) error {
	o, ok := m.orders[id]
	if !ok || !o.Status.Cancellable() {
		return pgx.ErrNoRows
	}
	o.Status = model.OrderStatusCancelled
	return nil
}

func (m *mockOrderRepo) Stats(_ context.Context) (*model.OrderStats, error) {
	stats := &model.OrderStats{TotalRevenue: decimal.Zero}
	for _, o := range m.orders {
		stats.TotalOrders++
		switch o.Status {
		case model.OrderStatusPending:
			stats.PendingOrders++
		case model.OrderStatusProcessing:
			stats.ProcessingOrders++
		case model.OrderStatusCompleted:
			stats.CompletedOrders++
		}
		if o.PaymentStatus == model.PaymentStatusPaid {
			stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
		}
	}
	return stats, nil
}

func orderRequest(items ...dto.CreateOrderItem) dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		UserID:          42,
		Items:           items,
		ShippingAddress: "1 Main St",
		PhoneNumber:     "+15550001111",
	}
}

func TestOrderService_Create_ComputesTotal(t *testing.T) {
	svc := NewOrderService(newMockOrderRepo(), nil, nil)

	order, err := svc.Create(context.Background(), orderRequest(
		dto.CreateOrderItem{ProductID: 1, ProductName: "Widget", Quantity: 2, Price: decimal.NewFromFloat(10.0)},
		dto.CreateOrderItem{ProductID: 2, ProductName: "Gadget", Quantity: 1, Price: decimal.NewFromFloat(5.5)},
	))
	require.NoError(t, err)

	assert.True(t, order.TotalAmount.Equal(decimal.NewFromFloat(25.5)), "got total %s", order.TotalAmount)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, model.PaymentStatusPending, order.PaymentStatus)
}

func TestOrderService_Create_NoItems(t *testing.T) {
	svc := NewOrderService(newMockOrderRepo(), nil, nil)
	_, err := svc.Create(context.Background(), orderRequest())
	assert.ErrorIs(t, err, ErrNoOrderItems)
}

func TestOrderService_Create_InvalidItems(t *testing.T) {
	svc := NewOrderService(newMockOrderRepo(), nil, nil)

	_, err := svc.Create(context.Background(), orderRequest(
		dto.CreateOrderItem{ProductID: 1, ProductName: "Widget", Quantity: 0, Price: decimal.NewFromInt(10)},
	))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Create(context.Background(), orderRequest(
		dto.CreateOrderItem{ProductID: 1, ProductName: "Widget", Quantity: 1, Price: decimal.NewFromInt(-1)},
	))
	assert.ErrorIs(t, err, ErrInvalidItemPrice)
}

func TestGenerateTrackingNumber(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		tn := generateTrackingNumber()
		require.Len(t, tn, 35)
		require.True(t, strings.HasPrefix(tn, "BRY"), "got %q", tn)
		require.Equal(t, strings.ToUpper(tn), tn)
		_, dup := seen[tn]
		require.False(t, dup, "duplicate tracking number %q", tn)
		seen[tn] = struct{}{}
	}
}

func TestOrderService_UpdateStatus(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewOrderService(repo, nil, nil)
	order, err := svc.Create(context.Background(), orderRequest(
		dto.CreateOrderItem{ProductID: 1, ProductName: "Widget", Quantity: 1, Price: decimal.NewFromInt(10)},
	))
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), order.ID, "completed")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, updated.Status)

	_, err = svc.UpdateStatus(context.Background(), order.ID, "shipped")
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)

	_, err = svc.UpdateStatus(context.Background(), 9999, "completed")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_UpdatePaymentStatus_AutoAdvance(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewOrderService(repo, nil, nil)
	order, err := svc.Create(context.Background(), orderRequest(
		dto.CreateOrderItem{ProductID: 1, ProductName: "Widget", Quantity: 1, Price: decimal.NewFromInt(10)},
	))
	require.NoError(t, err)

	updated, err := svc.UpdatePaymentStatus(context.Background(), order.ID, "paid")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, model.OrderStatusProcessing, updated.Status)
}

func TestOrderService_UpdatePaymentStatus_NoAdvancePastPending(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewOrderService(repo, nil, nil)
	order, err := svc.Create(context.Background(), orderRequest(
		dto.CreateOrderItem{ProductID: 1, ProductName: "Widget", Quantity: 1, Price: decimal.NewFromInt(10)},
	))
	require.NoError(t, err)
	repo.orders[order.ID].Status = model.OrderStatusCompleted

	updated, err := svc.UpdatePaymentStatus(context.Background(), order.ID, "paid")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, model.OrderStatusCompleted, updated.Status)
}

func TestOrderService_UpdatePaymentStatus_Invalid(t *testing.T) {
	svc := NewOrderService(newMockOrderRepo(), nil, nil)
	_, err := svc.UpdatePaymentStatus(context.Background(), 1, "refunded")
	assert.ErrorIs(t, err, ErrInvalidPayment)
}

func TestOrderService_Cancel(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewOrderService(repo, nil, nil)

	for _, status := range []model.OrderStatus{model.OrderStatusPending, model.OrderStatusProcessing} {
		order, err := svc.Create(context.Background(), orderRequest(
			dto.CreateOrderItem{ProductID: 1, ProductName: "Widget", Quantity: 1, Price: decimal.NewFromInt(10)},
		))
		require.NoError(t, err)
		repo.orders[order.ID].Status = status

		require.NoError(t, svc.Cancel(context.Background(), order.ID))
		got, err := svc.GetByID(context.Background(), order.ID)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCancelled, got.Status)
	}
}

func TestOrderService_Cancel_Guarded(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewOrderService(repo, nil, nil)

	for _, status := range []model.OrderStatus{model.OrderStatusCompleted, model.OrderStatusCancelled} {
		order, err := svc.Create(context.Background(), orderRequest(
			dto.CreateOrderItem{ProductID: 1, ProductName: "Widget", Quantity: 1, Price: decimal.NewFromInt(10)},
		))
		require.NoError(t, err)
		repo.orders[order.ID].Status = status

		err = svc.Cancel(context.Background(), order.ID)
		assert.ErrorIs(t, err, ErrOrderNotCancellable, "status %s", status)
	}

	assert.ErrorIs(t, svc.Cancel(context.Background(), 9999), ErrOrderNotFound)
}

func TestOrderService_Track(t *testing.T) {
	repo := newMockOrderRepo()
	svc := NewOrderService(repo, nil, nil)
	order, err := svc.Create(context.Background(), orderRequest(
		dto.CreateOrderItem{ProductID: 1, ProductName: "Widget", Quantity: 1, Price: decimal.NewFromInt(10)},
	))
	require.NoError(t, err)

	got, err := svc.Track(context.Background(), order.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = svc.Track(context.Background(), "BRY0000")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_List_InvalidStatus(t *testing.T) {
	svc := NewOrderService(newMockOrderRepo(), nil, nil)
	_, err := svc.List(context.Background(), "shipped", 0, 50)
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)
}
