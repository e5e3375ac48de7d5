package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/craftmart/craftmart-backend/pkg/db/dbtest"
	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	"github.com/craftmart/craftmart-backend/pkg/pagination"
)

func strPtr(v string) *string { return &v }

func seedOrder(t *testing.T, repo Repository, mutate func(o *models.Order)) *models.Order {
	t.Helper()
	order := &models.Order{
		Currency:       enums.CurrencyUSD,
		SubtotalCents:  2000,
		TotalCents:     2000,
		Status:         enums.OrderStatusPending,
		DeliveryStatus: enums.DeliveryStatusPending,
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, repo.Create(context.Background(), order))
	require.NotZero(t, order.ID)
	return order
}

func TestRepositoryCreateAndFindWithItems(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := seedOrder(t, repo, nil)
	require.NoError(t, repo.CreateItems(ctx, []models.OrderItem{
		{OrderID: order.ID, ProductName: "VIP", Quantity: 2, UnitPriceCents: 500, TotalCents: 1000},
		{OrderID: order.ID, ProductName: "Crate Key", Quantity: 1, UnitPriceCents: 1000, TotalCents: 1000},
	}))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 2)
	assert.Equal(t, "VIP", found.Items[0].ProductName)
	assert.Equal(t, enums.OrderStatusPending, found.Status)

	_, err = repo.FindByID(ctx, order.ID+100)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryExternalIDIsUnique(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	seedOrder(t, repo, func(o *models.Order) { o.ExternalOrderID = strPtr("ext-1") })
	dup := &models.Order{ExternalOrderID: strPtr("ext-1"), Status: enums.OrderStatusPending, DeliveryStatus: enums.DeliveryStatusPending}
	assert.Error(t, repo.Create(context.Background(), dup))

	found, err := repo.FindByExternalID(context.Background(), "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "ext-1", *found.ExternalOrderID)
}

func TestRepositoryUpdateMissingRow(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	err := repo.Update(context.Background(), 999, map[string]any{"status": enums.OrderStatusCompleted})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryListFiltersAndPagination(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	seedOrder(t, repo, func(o *models.Order) {
		o.CustomerEmail = strPtr("alex@example.com")
		o.Status = enums.OrderStatusCompleted
	})
	seedOrder(t, repo, func(o *models.Order) {
		o.CustomerName = strPtr("Steve_100%")
		o.TestMode = true
	})
	seedOrder(t, repo, func(o *models.Order) {
		o.ExternalOrderID = strPtr("LS-ABC")
		o.Status = enums.OrderStatusCompleted
		o.DeliveryStatus = enums.DeliveryStatusDelivered
	})

	all, total, err := repo.List(ctx, pagination.Params{Page: 1, Limit: 2}, ListFilters{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 2)

	page2, total, err := repo.List(ctx, pagination.Params{Page: 2, Limit: 2}, ListFilters{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page2, 1)

	beyond, total, err := repo.List(ctx, pagination.Params{Page: 5, Limit: 2}, ListFilters{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.NotNil(t, beyond)
	assert.Empty(t, beyond)

	found, total, err := repo.List(ctx, pagination.Params{}, ListFilters{Search: "ALEX"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "alex@example.com", *found[0].CustomerEmail)

	_, total, err = repo.List(ctx, pagination.Params{}, ListFilters{Search: "ls-abc"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	_, total, err = repo.List(ctx, pagination.Params{}, ListFilters{Search: "100%"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	completed := enums.OrderStatusCompleted
	_, total, err = repo.List(ctx, pagination.Params{}, ListFilters{Status: &completed})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	delivered := enums.DeliveryStatusDelivered
	_, total, err = repo.List(ctx, pagination.Params{}, ListFilters{Status: &completed, DeliveryStatus: &delivered})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	testMode := true
	_, total, err = repo.List(ctx, pagination.Params{}, ListFilters{TestMode: &testMode})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestRepositoryFindStalePendingWithoutCheckout(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()

	stale := seedOrder(t, repo, func(o *models.Order) { o.CreatedAt = now.Add(-2 * time.Hour) })
	seedOrder(t, repo, func(o *models.Order) {
		o.CreatedAt = now.Add(-2 * time.Hour)
		o.CheckoutURL = strPtr("https://pay.example/1")
	})
	seedOrder(t, repo, func(o *models.Order) { o.CreatedAt = now.Add(-time.Minute) })
	seedOrder(t, repo, func(o *models.Order) {
		o.CreatedAt = now.Add(-2 * time.Hour)
		o.Status = enums.OrderStatusCompleted
	})

	found, err := repo.FindStalePendingWithoutCheckout(context.Background(), now.Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.ID, found[0].ID)
}

func TestRepositoryFindPaidAwaitingDelivery(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)

	ready := seedOrder(t, repo, func(o *models.Order) { o.Status = enums.OrderStatusCompleted })
	retry := seedOrder(t, repo, func(o *models.Order) {
		o.Status = enums.OrderStatusCompleted
		o.DeliveryStatus = enums.DeliveryStatusFailed
		o.DeliveryAttempts = 2
	})
	seedOrder(t, repo, func(o *models.Order) {
		o.Status = enums.OrderStatusCompleted
		o.DeliveryStatus = enums.DeliveryStatusFailed
		o.DeliveryAttempts = 5
	})
	seedOrder(t, repo, func(o *models.Order) {
		o.Status = enums.OrderStatusCompleted
		o.DeliveryStatus = enums.DeliveryStatusProcessing
	})
	seedOrder(t, repo, nil)

	found, err := repo.FindPaidAwaitingDelivery(context.Background(), 5, 10)
	require.NoError(t, err)
	ids := []uint64{}
	for _, o := range found {
		ids = append(ids, o.ID)
	}
	assert.ElementsMatch(t, []uint64{ready.ID, retry.ID}, ids)
}

func TestRepositoryRequeueStaleProcessing(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	now := time.Now().UTC()

	stale := seedOrder(t, repo, func(o *models.Order) {
		o.Status = enums.OrderStatusCompleted
		o.DeliveryStatus = enums.DeliveryStatusProcessing
		o.DeliveryAttempts = 1
		o.UpdatedAt = now.Add(-time.Hour)
	})
	fresh := seedOrder(t, repo, func(o *models.Order) {
		o.Status = enums.OrderStatusCompleted
		o.DeliveryStatus = enums.DeliveryStatusProcessing
		o.DeliveryAttempts = 1
		o.UpdatedAt = now.Add(-time.Minute)
	})
	refunded := seedOrder(t, repo, func(o *models.Order) {
		o.Status = enums.OrderStatusRefunded
		o.DeliveryStatus = enums.DeliveryStatusProcessing
		o.UpdatedAt = now.Add(-time.Hour)
	})

	n, err := repo.RequeueStaleProcessing(context.Background(), now.Add(-15*time.Minute), "not acknowledged")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := repo.FindByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryStatusFailed, got.DeliveryStatus)
	assert.Equal(t, 1, got.DeliveryAttempts)
	require.NotNil(t, got.DeliveryError)
	assert.Equal(t, "not acknowledged", *got.DeliveryError)

	for _, id := range []uint64{fresh.ID, refunded.ID} {
		got, err := repo.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, enums.DeliveryStatusProcessing, got.DeliveryStatus)
	}
}

func TestRepositorySetItemCommands(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := seedOrder(t, repo, nil)
	items := []models.OrderItem{{OrderID: order.ID, ProductName: "VIP", Quantity: 1, UnitPriceCents: 500, TotalCents: 500}}
	require.NoError(t, repo.CreateItems(ctx, items))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	itemID := found.Items[0].ID

	require.NoError(t, repo.SetItemCommands(ctx, itemID, []string{"lp user Steve parent add vip"}))

	found, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"lp user Steve parent add vip"}, found.Items[0].Commands)
	assert.Equal(t, "VIP", found.Items[0].ProductName)

	assert.ErrorIs(t, repo.SetItemCommands(ctx, itemID+50, []string{"x"}), gorm.ErrRecordNotFound)
}
