package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/brybell/backend/internal/dto"
	"github.com/brybell/backend/internal/events"
	"github.com/brybell/backend/internal/metrics"
	"github.com/brybell/backend/internal/model"
	"github.com/brybell/backend/internal/repository"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancellable = errors.New("cannot cancel order in current status")
	ErrNoOrderItems        = errors.New("order must contain at least one item")
	ErrInvalidQuantity     = errors.New("item quantity must be at least 1")
	ErrInvalidItemPrice    = errors.New("item price must not be negative")
	ErrInvalidOrderStatus  = errors.New("unknown order status")
	ErrInvalidPayment      = errors.New("unknown payment status")
)

// tracking numbers collide only probabilistically; the store enforces a
// unique constraint, so retry a couple of times on conflict.
const trackingAttempts = 3

type OrderService struct {
	orderRepo repository.OrderRepository
	publisher *events.Publisher
	metrics   *metrics.Metrics
}

func NewOrderService(orderRepo repository.OrderRepository, publisher *events.Publisher, m *metrics.Metrics) *OrderService {
	return &OrderService{orderRepo: orderRepo, publisher: publisher, metrics: m}
}

func (s *OrderService) Create(ctx context.Context, req dto.CreateOrderRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoOrderItems
	}

	total := decimal.Zero
	items := make([]model.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if it.Price.IsNegative() {
			return nil, ErrInvalidItemPrice
		}
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		items = append(items, model.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}

	order := &model.Order{
		UserID:          req.UserID,
		TotalAmount:     total,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		ShippingAddress: req.ShippingAddress,
		PhoneNumber:     req.PhoneNumber,
		Items:           items,
	}

	var err error
	for attempt := 0; attempt < trackingAttempts; attempt++ {
		order.TrackingNumber = generateTrackingNumber()
		err = s.orderRepo.Create(ctx, order)
		if err == nil || !repository.IsUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	_ = s.publisher.Publish(ctx, events.KeyOrderCreated, events.OrderEvent{
		Event:   events.KeyOrderCreated,
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  order.Status,
	})
	s.metrics.AddOrderCreated(ctx)

	return order, nil
}

func (s *OrderService) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID int64, skip, limit int) ([]model.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID, skip, limit)
}

func (s *OrderService) List(ctx context.Context, status string, skip, limit int) ([]model.Order, error) {
	if status != "" && !model.ValidOrderStatus(model.OrderStatus(status)) {
		return nil, ErrInvalidOrderStatus
	}
	return s.orderRepo.List(ctx, model.OrderStatus(status), skip, limit)
}

// UpdateStatus accepts any known status; transitions beyond the cancel guard
// are not validated against a graph.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status string) (*model.Order, error) {
	newStatus := model.OrderStatus(status)
	if !model.ValidOrderStatus(newStatus) {
		return nil, ErrInvalidOrderStatus
	}

	if err := s.orderRepo.UpdateStatus(ctx, id, newStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, events.KeyStatusChanged, events.OrderEvent{
		Event:   events.KeyStatusChanged,
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  order.Status,
	})
	return order, nil
}

// UpdatePaymentStatus applies the auto-advance rule: a pending order that
// becomes paid moves to processing.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id int64, payment string) (*model.Order, error) {
	newPayment := model.PaymentStatus(payment)
	if !model.ValidPaymentStatus(newPayment) {
		return nil, ErrInvalidPayment
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	newStatus := order.Status
	if newPayment == model.PaymentStatusPaid && order.Status == model.OrderStatusPending {
		newStatus = model.OrderStatusProcessing
	}

	if err := s.orderRepo.SetPaymentStatus(ctx, id, newPayment, newStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("set payment status: %w", err)
	}

	if newPayment == model.PaymentStatusPaid && order.PaymentStatus != model.PaymentStatusPaid {
		s.metrics.AddRevenue(ctx, order.TotalAmount.InexactFloat64())
	}

	order.PaymentStatus = newPayment
	order.Status = newStatus

	_ = s.publisher.Publish(ctx, events.KeyPaymentUpdated, events.OrderEvent{
		Event:         events.KeyPaymentUpdated,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
	})
	return order, nil
}

func (s *OrderService) Cancel(ctx context.Context, id int64) error {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if !order.Status.Cancellable() {
		return ErrOrderNotCancellable
	}

	if err := s.orderRepo.Cancel(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Raced with another status change past the guard.
			return ErrOrderNotCancellable
		}
		return fmt.Errorf("cancel order: %w", err)
	}

	_ = s.publisher.Publish(ctx, events.KeyOrderCancelled, events.OrderEvent{
		Event:   events.KeyOrderCancelled,
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  model.OrderStatusCancelled,
	})
	return nil
}

func (s *OrderService) Track(ctx context.Context, trackingNumber string) (*model.Order, error) {
	order, err := s.orderRepo.GetByTracking(ctx, trackingNumber)
	if err != nil {
		return nil, fmt.Errorf("track order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) Stats(ctx context.Context) (*model.OrderStats, error) {
	return s.orderRepo.Stats(ctx)
}

// generateTrackingNumber returns "BRY" followed by 32 uppercase hex chars
// (128 bits of randomness).
func generateTrackingNumber() string {
	u := uuid.New()
	return "BRY" + strings.ToUpper(hex.EncodeToString(u[:]))
}
