package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/craftmart/craftmart-backend/internal/catalog"
	"github.com/craftmart/craftmart-backend/internal/orders"
	"github.com/craftmart/craftmart-backend/pkg/db"
	"github.com/craftmart/craftmart-backend/pkg/db/dbtest"
	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	"github.com/craftmart/craftmart-backend/pkg/logger"
)

const testStream = "craftmart:fulfillment"

type publishCall struct {
	stream string
	values map[string]any
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, stream string, values map[string]any) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, publishCall{stream: stream, values: values})
	return "1700000000000-0", nil
}

func newTestDispatcher(t *testing.T, maxAttempts int) (*Dispatcher, *gorm.DB, *fakePublisher) {
	t.Helper()
	return newTestDispatcherWithAck(t, maxAttempts, 0)
}

func newTestDispatcherWithAck(t *testing.T, maxAttempts int, ackTimeout time.Duration) (*Dispatcher, *gorm.DB, *fakePublisher) {
	t.Helper()
	conn := dbtest.Open(t)
	pub := &fakePublisher{}
	d, err := NewDispatcher(DispatcherParams{
		Orders:      orders.NewRepository(conn),
		Products:    catalog.NewRepository(conn),
		Publisher:   pub,
		Tx:          db.FromGorm(conn),
		Logger:      logger.Nop(),
		Stream:      testStream,
		MaxAttempts: maxAttempts,
		AckTimeout:  ackTimeout,
	})
	require.NoError(t, err)
	return d, conn, pub
}

func seedPaidOrder(t *testing.T, conn *gorm.DB, playerName string, product *models.Product, qty int) *models.Order {
	t.Helper()
	order := &models.Order{
		Currency:       enums.CurrencyUSD,
		SubtotalCents:  product.PriceCents * int64(qty),
		TotalCents:     product.PriceCents * int64(qty),
		Status:         enums.OrderStatusCompleted,
		DeliveryStatus: enums.DeliveryStatusPending,
	}
	if playerName != "" {
		player := &models.Player{Username: playerName}
		require.NoError(t, conn.Create(player).Error)
		order.PlayerID = &player.ID
	}
	require.NoError(t, conn.Omit("Items", "Player").Create(order).Error)
	productID := product.ID
	item := &models.OrderItem{
		OrderID:        order.ID,
		ProductID:      &productID,
		ProductName:    product.Name,
		Quantity:       qty,
		UnitPriceCents: product.PriceCents,
		TotalCents:     product.PriceCents * int64(qty),
	}
	require.NoError(t, conn.Create(item).Error)
	return order
}

func reload(t *testing.T, conn *gorm.DB, id uint64) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, conn.Preload("Items").First(&order, id).Error)
	return order
}

func TestNewDispatcherRequiresDependencies(t *testing.T) {
	_, err := NewDispatcher(DispatcherParams{})
	assert.Error(t, err)
}

func TestDispatchPendingPublishesCommands(t *testing.T) {
	d, conn, pub := newTestDispatcher(t, 3)
	vip := dbtest.SeedProduct(t, conn, "vip", 1000, "lp user {player} parent add vip", "say thanks {player} #{order_id}")
	order := seedPaidOrder(t, conn, "Notch", vip, 1)

	n, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, pub.calls, 1)
	call := pub.calls[0]
	assert.Equal(t, testStream, call.stream)
	assert.Equal(t, "Notch", call.values["player"])

	var commands []string
	require.NoError(t, json.Unmarshal([]byte(call.values["commands"].(string)), &commands))
	assert.Equal(t, []string{"lp user Notch parent add vip", "say thanks Notch #1"}, commands)

	got := reload(t, conn, order.ID)
	assert.Equal(t, enums.DeliveryStatusProcessing, got.DeliveryStatus)
	assert.Equal(t, 1, got.DeliveryAttempts)
	assert.Nil(t, got.DeliveryError)
	require.Len(t, got.Items, 1)
	assert.Equal(t, commands, got.Items[0].Commands)

	n, err = d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatchWithoutPlayerFails(t *testing.T) {
	d, conn, pub := newTestDispatcher(t, 2)
	vip := dbtest.SeedProduct(t, conn, "vip", 1000, "lp user {player} parent add vip")
	order := seedPaidOrder(t, conn, "", vip, 1)

	_, err := d.DispatchPending(context.Background())
	require.Error(t, err)
	assert.Empty(t, pub.calls)

	got := reload(t, conn, order.ID)
	assert.Equal(t, enums.DeliveryStatusFailed, got.DeliveryStatus)
	assert.Equal(t, 1, got.DeliveryAttempts)
	require.NotNil(t, got.DeliveryError)
	assert.Contains(t, *got.DeliveryError, "no player")

	_, err = d.DispatchPending(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, reload(t, conn, order.ID).DeliveryAttempts)

	n, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, reload(t, conn, order.ID).DeliveryAttempts)
}

func TestDispatchPublishFailureMarksFailed(t *testing.T) {
	d, conn, pub := newTestDispatcher(t, 5)
	pub.err = errors.New("redis down")
	vip := dbtest.SeedProduct(t, conn, "vip", 1000, "give {player} diamond {quantity}")
	order := seedPaidOrder(t, conn, "Alex", vip, 4)

	_, err := d.DispatchPending(context.Background())
	require.Error(t, err)

	got := reload(t, conn, order.ID)
	assert.Equal(t, enums.DeliveryStatusFailed, got.DeliveryStatus)
	assert.Equal(t, 1, got.DeliveryAttempts)
	require.NotNil(t, got.DeliveryError)
	assert.Contains(t, *got.DeliveryError, "redis down")
}

func TestDispatchSkipsUnpaidOrders(t *testing.T) {
	d, conn, pub := newTestDispatcher(t, 5)
	vip := dbtest.SeedProduct(t, conn, "vip", 1000, "give {player} diamond")
	order := seedPaidOrder(t, conn, "Alex", vip, 1)
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", enums.OrderStatusPending).Error)

	n, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.calls)
}

func TestDispatchPendingRequeuesUnacknowledgedDelivery(t *testing.T) {
	d, conn, pub := newTestDispatcherWithAck(t, 3, 15*time.Minute)
	vip := dbtest.SeedProduct(t, conn, "vip", 1000, "lp user {player} parent add vip")
	order := seedPaidOrder(t, conn, "Notch", vip, 1)

	n, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, enums.DeliveryStatusProcessing, reload(t, conn, order.ID).DeliveryStatus)

	published := time.Now().UTC()
	d.now = func() time.Time { return published.Add(time.Hour) }

	n, err = d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, pub.calls, 2)

	got := reload(t, conn, order.ID)
	assert.Equal(t, enums.DeliveryStatusProcessing, got.DeliveryStatus)
	assert.Equal(t, 2, got.DeliveryAttempts)
	assert.Nil(t, got.DeliveryError)
}

func TestDispatchPendingStopsRequeueAtMaxAttempts(t *testing.T) {
	d, conn, pub := newTestDispatcherWithAck(t, 1, 15*time.Minute)
	vip := dbtest.SeedProduct(t, conn, "vip", 1000, "lp user {player} parent add vip")
	order := seedPaidOrder(t, conn, "Notch", vip, 1)

	_, err := d.DispatchPending(context.Background())
	require.NoError(t, err)

	published := time.Now().UTC()
	d.now = func() time.Time { return published.Add(time.Hour) }

	n, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, pub.calls, 1)

	got := reload(t, conn, order.ID)
	assert.Equal(t, enums.DeliveryStatusFailed, got.DeliveryStatus)
	assert.Equal(t, 1, got.DeliveryAttempts)
	require.NotNil(t, got.DeliveryError)
	assert.Contains(t, *got.DeliveryError, "not acknowledged")
}
