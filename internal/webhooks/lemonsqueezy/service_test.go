package lemonsqueezywebhook

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/craftmart/craftmart-backend/internal/orders"
	"github.com/craftmart/craftmart-backend/pkg/db"
	"github.com/craftmart/craftmart-backend/pkg/db/dbtest"
	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
	"github.com/craftmart/craftmart-backend/pkg/lemonsqueezy"
	"github.com/craftmart/craftmart-backend/pkg/logger"
)

type recordingMetrics struct {
	calls []string
}

func (m *recordingMetrics) IncWebhook(event, result string) {
	m.calls = append(m.calls, event+":"+result)
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *recordingMetrics) {
	t.Helper()
	conn := dbtest.Open(t)
	metrics := &recordingMetrics{}
	svc, err := NewService(ServiceParams{
		Orders:            orders.NewRepository(conn),
		Events:            NewEventRepository(conn),
		TransactionRunner: db.FromGorm(conn),
		Metrics:           metrics,
		Logger:            logger.Nop(),
	})
	require.NoError(t, err)
	return svc, conn, metrics
}

func seedPendingOrder(t *testing.T, conn *gorm.DB, total int64) *models.Order {
	t.Helper()
	session := "sess_abcdefghijklmnop"
	order := &models.Order{
		SessionID:      &session,
		Currency:       enums.CurrencyUSD,
		SubtotalCents:  total,
		TotalCents:     total,
		Status:         enums.OrderStatusPending,
		DeliveryStatus: enums.DeliveryStatusPending,
	}
	require.NoError(t, conn.Omit("Items", "Player").Create(order).Error)
	return order
}

func paidPayload(orderID any, externalID string) []byte {
	return paidPayloadIn(orderID, externalID, "USD")
}

func paidPayloadIn(orderID any, externalID, currency string) []byte {
	custom := ""
	if orderID != nil {
		custom = fmt.Sprintf(`,"custom_data":{"order_id":%q,"session_id":"sess_abcdefghijklmnop"}`, fmt.Sprint(orderID))
	}
	return []byte(fmt.Sprintf(`{
  "meta":{"event_name":"order_created","test_mode":true%s},
  "data":{"type":"orders","id":%q,"attributes":{
    "status":"paid","user_email":"a@b.com","user_name":"Alex","currency":%q,
    "subtotal":2000,"tax":0,"total":2000,"test_mode":true,
    "urls":{"receipt":"https://app.lemonsqueezy.com/my-orders/abc"}}}
}`, custom, externalID, currency))
}

func handle(t *testing.T, svc *Service, payload []byte) error {
	t.Helper()
	event, err := lemonsqueezy.ParseEvent(payload)
	require.NoError(t, err)
	return svc.HandleEvent(context.Background(), payload, event)
}

func loadOrder(t *testing.T, conn *gorm.DB, id uint64) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, conn.First(&order, id).Error)
	return order
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestOrderCreatedCompletesMatchedOrder(t *testing.T) {
	svc, conn, metrics := newTestService(t)
	order := seedPendingOrder(t, conn, 2000)

	require.NoError(t, handle(t, svc, paidPayload(order.ID, "ext-1")))

	got := loadOrder(t, conn, order.ID)
	assert.Equal(t, enums.OrderStatusCompleted, got.Status)
	require.NotNil(t, got.ExternalOrderID)
	assert.Equal(t, "ext-1", *got.ExternalOrderID)
	require.NotNil(t, got.CustomerEmail)
	assert.Equal(t, "a@b.com", *got.CustomerEmail)
	require.NotNil(t, got.ReceiptURL)
	assert.True(t, got.TestMode)
	assert.EqualValues(t, 2000, got.TotalCents)
	assert.Equal(t, []string{"order_created:updated"}, metrics.calls)

	var audit models.WebhookEvent
	require.NoError(t, conn.First(&audit).Error)
	assert.Equal(t, "lemonsqueezy", audit.Provider)
	assert.Equal(t, "order_created", audit.EventName)
	assert.NotNil(t, audit.ProcessedAt)
	assert.Nil(t, audit.ProcessingError)
}

func TestOrderCreatedRedeliveryIsStable(t *testing.T) {
	svc, conn, _ := newTestService(t)
	order := seedPendingOrder(t, conn, 2000)
	payload := paidPayload(order.ID, "ext-1")

	require.NoError(t, handle(t, svc, payload))
	first := loadOrder(t, conn, order.ID)
	require.NoError(t, handle(t, svc, payload))
	second := loadOrder(t, conn, order.ID)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.ExternalOrderID, second.ExternalOrderID)
	assert.Equal(t, first.CustomerEmail, second.CustomerEmail)
	assert.Equal(t, first.TotalCents, second.TotalCents)
	assert.Equal(t, first.ReceiptURL, second.ReceiptURL)

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestOrderCreatedFallsBackToExternalID(t *testing.T) {
	svc, conn, _ := newTestService(t)
	order := seedPendingOrder(t, conn, 2000)
	require.NoError(t, conn.Model(order).Update("external_order_id", "ext-9").Error)

	require.NoError(t, handle(t, svc, paidPayload(nil, "ext-9")))
	assert.Equal(t, enums.OrderStatusCompleted, loadOrder(t, conn, order.ID).Status)
}

func TestOrderCreatedUnmatchedCreatesOrder(t *testing.T) {
	svc, conn, metrics := newTestService(t)

	require.NoError(t, handle(t, svc, paidPayload(424242, "ext-2")))

	var created models.Order
	require.NoError(t, conn.Where("external_order_id = ?", "ext-2").First(&created).Error)
	assert.Equal(t, enums.OrderStatusCompleted, created.Status)
	assert.EqualValues(t, 2000, created.TotalCents)
	require.NotNil(t, created.SessionID)
	assert.Equal(t, "sess_abcdefghijklmnop", *created.SessionID)
	assert.Equal(t, []string{"order_created:created"}, metrics.calls)
}

func TestOrderCreatedUnpaidLeavesPending(t *testing.T) {
	svc, conn, _ := newTestService(t)
	order := seedPendingOrder(t, conn, 2000)
	payload := []byte(fmt.Sprintf(`{"meta":{"event_name":"order_created","custom_data":{"order_id":"%d"}},
"data":{"id":"ext-3","attributes":{"status":"pending","total":2000}}}`, order.ID))

	require.NoError(t, handle(t, svc, payload))
	got := loadOrder(t, conn, order.ID)
	assert.Equal(t, enums.OrderStatusPending, got.Status)
	require.NotNil(t, got.ExternalOrderID)
	assert.Equal(t, "ext-3", *got.ExternalOrderID)
}

func TestOrderCreatedIgnoredForRefundedOrder(t *testing.T) {
	svc, conn, metrics := newTestService(t)
	order := seedPendingOrder(t, conn, 2000)
	require.NoError(t, conn.Model(order).Updates(map[string]any{"status": "refunded", "refunded": true}).Error)

	require.NoError(t, handle(t, svc, paidPayload(order.ID, "ext-1")))
	got := loadOrder(t, conn, order.ID)
	assert.Equal(t, enums.OrderStatusRefunded, got.Status)
	assert.Nil(t, got.ExternalOrderID)
	assert.Equal(t, []string{"order_created:ignored"}, metrics.calls)
}

func TestOrderCreatedCompletesSweptOrder(t *testing.T) {
	svc, conn, _ := newTestService(t)
	order := seedPendingOrder(t, conn, 2000)
	require.NoError(t, conn.Model(order).Update("status", "failed").Error)

	require.NoError(t, handle(t, svc, paidPayload(order.ID, "ext-1")))
	assert.Equal(t, enums.OrderStatusCompleted, loadOrder(t, conn, order.ID).Status)
}

func TestOrderRefundedMatchesExternalID(t *testing.T) {
	svc, conn, _ := newTestService(t)
	order := seedPendingOrder(t, conn, 2000)
	require.NoError(t, handle(t, svc, paidPayload(order.ID, "ext-1")))

	refund := []byte(`{"meta":{"event_name":"order_refunded"},"data":{"id":"ext-1","attributes":{"status":"refunded","refunded":true}}}`)
	require.NoError(t, handle(t, svc, refund))

	got := loadOrder(t, conn, order.ID)
	assert.Equal(t, enums.OrderStatusRefunded, got.Status)
	assert.True(t, got.Refunded)
	require.NotNil(t, got.RefundedAt)
	assert.WithinDuration(t, time.Now(), *got.RefundedAt, time.Minute)
}

func TestOrderRefundedIgnoresLocalID(t *testing.T) {
	svc, conn, metrics := newTestService(t)
	order := seedPendingOrder(t, conn, 2000)

	refund := []byte(fmt.Sprintf(`{"meta":{"event_name":"order_refunded","custom_data":{"order_id":"%d"}},"data":{"id":"ext-unknown","attributes":{}}}`, order.ID))
	err := handle(t, svc, refund)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, enums.OrderStatusPending, loadOrder(t, conn, order.ID).Status)
	assert.Equal(t, []string{"order_refunded:error"}, metrics.calls)

	var audit models.WebhookEvent
	require.NoError(t, conn.First(&audit).Error)
	require.NotNil(t, audit.ProcessingError)
	assert.Contains(t, *audit.ProcessingError, "order not found")
}

func TestUnknownEventAcknowledged(t *testing.T) {
	svc, conn, metrics := newTestService(t)
	order := seedPendingOrder(t, conn, 2000)

	payload := []byte(`{"meta":{"event_name":"subscription_created"},"data":{"id":"sub-1","attributes":{}}}`)
	require.NoError(t, handle(t, svc, payload))
	assert.Equal(t, enums.OrderStatusPending, loadOrder(t, conn, order.ID).Status)
	assert.Equal(t, []string{"subscription_created:ignored"}, metrics.calls)
}

func TestOrderCreatedStoresProviderCurrency(t *testing.T) {
	svc, conn, _ := newTestService(t)
	order := seedPendingOrder(t, conn, 2000)

	require.NoError(t, handle(t, svc, paidPayloadIn(order.ID, "ext-1", "jpy")))
	got := loadOrder(t, conn, order.ID)
	assert.Equal(t, enums.Currency("JPY"), got.Currency)
	assert.EqualValues(t, 2000, got.TotalCents)

	require.NoError(t, handle(t, svc, paidPayloadIn(nil, "ext-2", "CAD")))
	var created models.Order
	require.NoError(t, conn.Where("external_order_id = ?", "ext-2").First(&created).Error)
	assert.Equal(t, enums.Currency("CAD"), created.Currency)
	assert.EqualValues(t, 2000, created.TotalCents)
}

func TestOrderCreatedRejectsMalformedCurrency(t *testing.T) {
	svc, conn, metrics := newTestService(t)
	order := seedPendingOrder(t, conn, 1500)

	err := handle(t, svc, paidPayloadIn(order.ID, "ext-1", "DOLLARS"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	got := loadOrder(t, conn, order.ID)
	assert.Equal(t, enums.OrderStatusPending, got.Status)
	assert.Equal(t, enums.CurrencyUSD, got.Currency)
	assert.EqualValues(t, 1500, got.TotalCents)
	assert.Nil(t, got.ExternalOrderID)
	assert.Equal(t, []string{"order_created:error"}, metrics.calls)

	var audit models.WebhookEvent
	require.NoError(t, conn.First(&audit).Error)
	require.NotNil(t, audit.ProcessingError)
	assert.Contains(t, *audit.ProcessingError, "currency")
}

func TestOrderCreatedSecondPaymentKeepsFirstRefundable(t *testing.T) {
	svc, conn, metrics := newTestService(t)
	order := seedPendingOrder(t, conn, 2000)

	require.NoError(t, handle(t, svc, paidPayload(order.ID, "ext-1")))
	require.NoError(t, handle(t, svc, paidPayload(order.ID, "ext-2")))

	got := loadOrder(t, conn, order.ID)
	require.NotNil(t, got.ExternalOrderID)
	assert.Equal(t, "ext-1", *got.ExternalOrderID)

	var second models.Order
	require.NoError(t, conn.Where("external_order_id = ?", "ext-2").First(&second).Error)
	assert.NotEqual(t, order.ID, second.ID)
	assert.Equal(t, enums.OrderStatusCompleted, second.Status)

	require.NoError(t, handle(t, svc, paidPayload(order.ID, "ext-2")))
	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	refund := []byte(`{"meta":{"event_name":"order_refunded"},"data":{"id":"ext-1","attributes":{"status":"refunded","refunded":true}}}`)
	require.NoError(t, handle(t, svc, refund))
	assert.Equal(t, enums.OrderStatusRefunded, loadOrder(t, conn, order.ID).Status)
	assert.Equal(t, enums.OrderStatusCompleted, loadOrder(t, conn, second.ID).Status)
	assert.Equal(t, []string{
		"order_created:updated",
		"order_created:created",
		"order_created:updated",
		"order_refunded:refunded",
	}, metrics.calls)
}

func TestOrderRefundedRedeliveryIsStable(t *testing.T) {
	svc, conn, _ := newTestService(t)
	order := seedPendingOrder(t, conn, 2000)
	require.NoError(t, handle(t, svc, paidPayload(order.ID, "ext-1")))

	firstAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return firstAt }
	refund := []byte(`{"meta":{"event_name":"order_refunded"},"data":{"id":"ext-1","attributes":{"status":"refunded","refunded":true}}}`)
	require.NoError(t, handle(t, svc, refund))
	first := loadOrder(t, conn, order.ID)

	svc.now = func() time.Time { return firstAt.Add(6 * time.Hour) }
	require.NoError(t, handle(t, svc, refund))
	second := loadOrder(t, conn, order.ID)

	assert.Equal(t, enums.OrderStatusRefunded, second.Status)
	assert.Equal(t, first.Status, second.Status)
	assert.True(t, second.Refunded)
	require.NotNil(t, first.RefundedAt)
	require.NotNil(t, second.RefundedAt)
	assert.True(t, first.RefundedAt.Equal(*second.RefundedAt))
	assert.True(t, second.RefundedAt.Equal(firstAt))
}
