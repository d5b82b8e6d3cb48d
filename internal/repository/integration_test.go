package repository

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brybell/backend/internal/model"
)

func TestUserRepo_CreateAndGetByEmail(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "users")

	repo := NewUserRepository(testPool)
	ctx := context.Background()

	user := &model.User{
		Email: "test@example.com", Phone: "+15550001111", PasswordHash: "hashed",
		FirstName: "John", LastName: "Doe", Role: "customer",
	}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotZero(t, user.ID)

	found, err := repo.GetByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	missing, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	exists, err := repo.ExistsByEmailOrPhone(ctx, "other@example.com", "+15550001111")
	require.NoError(t, err)
	assert.True(t, exists)

	dup := &model.User{
		Email: "test@example.com", Phone: "+15550009999", PasswordHash: "hashed",
		FirstName: "Jane", LastName: "Doe", Role: "customer",
	}
	err = repo.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestProductRepo_CRUD(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "products")

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	product := &model.Product{
		Name: "Test", Description: "Desc", Price: decimal.NewFromFloat(29.99),
		Category: "gear", Brand: "Brybell", StockQuantity: 100,
	}
	require.NoError(t, repo.Create(ctx, product))
	assert.NotZero(t, product.ID)

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test", found.Name)

	product.Name = "Updated"
	require.NoError(t, repo.Update(ctx, product))

	found, _ = repo.GetByID(ctx, product.ID)
	assert.Equal(t, "Updated", found.Name)

	require.NoError(t, repo.SetStock(ctx, product.ID, 5))
	found, _ = repo.GetByID(ctx, product.ID)
	assert.Equal(t, 5, found.StockQuantity)

	require.NoError(t, repo.Delete(ctx, product.ID))
	found, _ = repo.GetByID(ctx, product.ID)
	assert.Nil(t, found)

	assert.ErrorIs(t, repo.Delete(ctx, product.ID), pgx.ErrNoRows)
}

func TestProductRepo_ListFilters(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "products")

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	seed := []model.Product{
		{Name: "Trail Shoe", Category: "footwear", Brand: "Brybell", Price: decimal.NewFromInt(80), Featured: true},
		{Name: "Road Shoe", Category: "footwear", Brand: "Brybell", Price: decimal.NewFromInt(90)},
		{Name: "Rain Jacket", Category: "apparel", Brand: "Brybell", Price: decimal.NewFromInt(120), Featured: true},
	}
	for i := range seed {
		require.NoError(t, repo.Create(ctx, &seed[i]))
	}

	footwear, err := repo.List(ctx, ProductFilter{Category: "footwear", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, footwear, 2)

	featured := true
	got, err := repo.List(ctx, ProductFilter{Featured: &featured, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	byName, err := repo.List(ctx, ProductFilter{Search: "jacket", Limit: 10})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Rain Jacket", byName[0].Name)

	top, err := repo.ListFeatured(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func seedOrder(t *testing.T, repo OrderRepository, userID int64, tracking string) *model.Order {
	t.Helper()
	order := &model.Order{
		UserID:          userID,
		TotalAmount:     decimal.NewFromFloat(25.5),
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		ShippingAddress: "1 Main St",
		PhoneNumber:     "+15550001111",
		TrackingNumber:  tracking,
		Items: []model.OrderItem{
			{ProductID: 1, ProductName: "Widget", Quantity: 2, Price: decimal.NewFromInt(10)},
			{ProductID: 2, ProductName: "Gadget", Quantity: 1, Price: decimal.NewFromFloat(5.5)},
		},
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestOrderRepo_CreateAndGet(t *testing.T) {
	cleanupTable(t, "order_items", "orders")

	repo := NewOrderRepository(testPool)
	ctx := context.Background()

	order := seedOrder(t, repo, 42, "BRY00000000000000000000000000000001")
	assert.NotZero(t, order.ID)

	found, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, found.Items, 2)
	assert.True(t, found.TotalAmount.Equal(decimal.NewFromFloat(25.5)))

	byTracking, err := repo.GetByTracking(ctx, order.TrackingNumber)
	require.NoError(t, err)
	require.NotNil(t, byTracking)
	assert.Equal(t, order.ID, byTracking.ID)

	missing, err := repo.GetByID(ctx, 999999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepo_TrackingUnique(t *testing.T) {
	cleanupTable(t, "order_items", "orders")

	repo := NewOrderRepository(testPool)

	seedOrder(t, repo, 1, "BRY00000000000000000000000000000002")
	order := &model.Order{
		UserID: 2, TotalAmount: decimal.NewFromInt(10),
		Status: model.OrderStatusPending, PaymentStatus: model.PaymentStatusPending,
		ShippingAddress: "2 Main St", PhoneNumber: "+15550002222",
		TrackingNumber: "BRY00000000000000000000000000000002",
		Items:          []model.OrderItem{{ProductID: 1, ProductName: "Widget", Quantity: 1, Price: decimal.NewFromInt(10)}},
	}
	err := repo.Create(context.Background(), order)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestOrderRepo_StatusTransitions(t *testing.T) {
	cleanupTable(t, "order_items", "orders")

	repo := NewOrderRepository(testPool)
	ctx := context.Background()

	order := seedOrder(t, repo, 42, "BRY00000000000000000000000000000003")

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, model.OrderStatusCompleted))
	found, _ := repo.GetByID(ctx, order.ID)
	assert.Equal(t, model.OrderStatusCompleted, found.Status)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, 999999, model.OrderStatusCompleted), pgx.ErrNoRows)

	require.NoError(t, repo.SetPaymentStatus(ctx, order.ID, model.PaymentStatusPaid, model.OrderStatusCompleted))
	found, _ = repo.GetByID(ctx, order.ID)
	assert.Equal(t, model.PaymentStatusPaid, found.PaymentStatus)

	// Completed orders are past the cancel guard.
	assert.ErrorIs(t, repo.Cancel(ctx, order.ID), pgx.ErrNoRows)

	cancellable := seedOrder(t, repo, 42, "BRY00000000000000000000000000000004")
	require.NoError(t, repo.Cancel(ctx, cancellable.ID))
	found, _ = repo.GetByID(ctx, cancellable.ID)
	assert.Equal(t, model.OrderStatusCancelled, found.Status)
}

func TestOrderRepo_ListAndStats(t *testing.T) {
	cleanupTable(t, "order_items", "orders")

	repo := NewOrderRepository(testPool)
	ctx := context.Background()

	a := seedOrder(t, repo, 1, "BRY00000000000000000000000000000005")
	seedOrder(t, repo, 1, "BRY00000000000000000000000000000006")
	seedOrder(t, repo, 2, "BRY00000000000000000000000000000007")

	require.NoError(t, repo.SetPaymentStatus(ctx, a.ID, model.PaymentStatusPaid, model.OrderStatusProcessing))

	mine, err := repo.ListByUser(ctx, 1, 0, 20)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	pending, err := repo.List(ctx, model.OrderStatusPending, 0, 50)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	all, err := repo.List(ctx, "", 0, 50)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalOrders)
	assert.EqualValues(t, 2, stats.PendingOrders)
	assert.EqualValues(t, 1, stats.ProcessingOrders)
	assert.True(t, stats.TotalRevenue.Equal(decimal.NewFromFloat(25.5)), "got %s", stats.TotalRevenue)
}
