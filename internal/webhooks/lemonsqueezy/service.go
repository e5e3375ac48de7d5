package lemonsqueezywebhook

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/craftmart/craftmart-backend/internal/orders"
	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
	"github.com/craftmart/craftmart-backend/pkg/lemonsqueezy"
	"github.com/craftmart/craftmart-backend/pkg/logger"
	"gorm.io/gorm"
)

const providerName = "lemonsqueezy"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type webhookMetrics interface {
	IncWebhook(event, result string)
}

type ServiceParams struct {
	Orders            orders.Repository
	Events            EventRepository
	TransactionRunner txRunner
	Metrics           webhookMetrics
	Logger            *logger.Logger
}

// Service applies LemonSqueezy order events to local orders. It is the only
// path by which an order leaves pending.
type Service struct {
	orders   orders.Repository
	events   EventRepository
	txRunner txRunner
	metrics  webhookMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook event repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		orders:   params.Orders,
		events:   params.Events,
		txRunner: params.TransactionRunner,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// HandleEvent records the raw payload and applies the event. Unknown event
// names are acknowledged without touching orders.
func (s *Service) HandleEvent(ctx context.Context, payload []byte, event *lemonsqueezy.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "lemonsqueezy event required")
	}
	name := event.Meta.EventName
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_name":  name,
		"external_id": event.Data.ID,
	})

	audit := &models.WebhookEvent{
		Provider:  providerName,
		EventName: name,
		Payload:   string(payload),
	}
	if event.Data.ID != "" {
		externalID := event.Data.ID
		audit.ExternalID = &externalID
	}
	if err := s.events.Record(ctx, audit); err != nil {
		s.incMetric(name, "error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
	}

	var (
		result string
		err    error
	)
	switch name {
	case lemonsqueezy.EventOrderCreated:
		result, err = s.applyOrderCreated(ctx, event)
	case lemonsqueezy.EventOrderRefunded:
		result, err = s.applyOrderRefunded(ctx, event)
	default:
		result = "ignored"
		s.logg.Info(ctx, "webhook.event_ignored")
	}
	if err != nil {
		result = "error"
		s.logg.Error(ctx, "webhook.apply_failed", err)
	}

	if markErr := s.events.MarkProcessed(ctx, audit.ID, s.now(), err); markErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "mark_error", markErr.Error()), "webhook.audit_update_failed")
	}
	s.incMetric(name, result)
	return err
}

func (s *Service) applyOrderCreated(ctx context.Context, event *lemonsqueezy.Event) (string, error) {
	attrs := event.Data.Attributes
	currency, err := eventCurrency(attrs)
	if err != nil {
		return "", err
	}
	result := "updated"

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)

		order, err := s.matchOrder(ctx, repo, event)
		if err != nil {
			return err
		}

		if order == nil {
			created := s.orderFromEvent(event, currency)
			s.logg.Warn(s.logg.WithField(ctx, "local_order_hint", event.Meta.CustomData["order_id"]), "webhook.order_created.unmatched")
			if err := repo.Create(ctx, created); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create unmatched order")
			}
			result = "created"
			return nil
		}

		ctx = s.logg.WithOrderID(ctx, order.ID)
		target := order.Status
		if attrs.IsPaid() {
			target = enums.OrderStatusCompleted
		}
		if !order.Status.CanTransitionTo(target) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"from_status": order.Status,
				"to_status":   target,
			}), "webhook.order_created.transition_rejected")
			result = "ignored"
			return nil
		}

		updates := s.orderFields(event, currency)
		updates["status"] = target
		updates["updated_at"] = s.now()
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logg.Info(s.logg.WithField(ctx, "result", result), "webhook.order_created.applied")
	return result, nil
}

// matchOrder prefers the local id embedded at checkout and falls back to the
// provider order id. A local order already bound to a different provider order
// is not reused, so the earlier payment stays refundable. A nil order with nil
// error means no match.
func (s *Service) matchOrder(ctx context.Context, repo orders.Repository, event *lemonsqueezy.Event) (*models.Order, error) {
	externalID := strings.TrimSpace(event.Data.ID)
	if id, ok := event.Meta.LocalOrderID(); ok {
		order, err := repo.FindByID(ctx, id)
		switch {
		case err == nil && boundElsewhere(order, externalID):
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"order_id":          order.ID,
				"bound_external_id": *order.ExternalOrderID,
			}), "webhook.order_created.local_order_already_paid")
		case err == nil:
			return order, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
	}
	if externalID != "" {
		order, err := repo.FindByExternalID(ctx, externalID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by external id")
		}
	}
	return nil, nil
}

func (s *Service) applyOrderRefunded(ctx context.Context, event *lemonsqueezy.Event) (string, error) {
	externalID := strings.TrimSpace(event.Data.ID)
	if externalID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "refund event missing order id")
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByExternalID(ctx, externalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found for refund")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		ctx = s.logg.WithOrderID(ctx, order.ID)
		if !order.Status.CanTransitionTo(enums.OrderStatusRefunded) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be refunded").
				WithDetails(map[string]any{"status": order.Status})
		}

		now := s.now()
		updates := map[string]any{
			"status":      enums.OrderStatusRefunded,
			"refunded":    true,
			"refunded_at": now,
			"updated_at":  now,
		}
		if order.RefundedAt != nil {
			updates["refunded_at"] = *order.RefundedAt
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		s.logg.Info(ctx, "webhook.order_refunded.applied")
		return nil
	})
	if err != nil {
		return "", err
	}
	return "refunded", nil
}

func boundElsewhere(order *models.Order, externalID string) bool {
	return order.ExternalOrderID != nil && externalID != "" && *order.ExternalOrderID != externalID
}

// eventCurrency returns the settled currency. An empty value keeps the local
// one; anything that is not an ISO 4217 code fails the event.
func eventCurrency(attrs lemonsqueezy.OrderAttributes) (enums.Currency, error) {
	if strings.TrimSpace(attrs.Currency) == "" {
		return "", nil
	}
	currency, err := enums.ParseISOCurrency(attrs.Currency)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported event currency")
	}
	return currency, nil
}

// orderFields copies the provider's view of the order onto the local row.
func (s *Service) orderFields(event *lemonsqueezy.Event, currency enums.Currency) map[string]any {
	attrs := event.Data.Attributes
	fields := map[string]any{
		"subtotal_cents": attrs.Subtotal,
		"tax_cents":      attrs.Tax,
		"total_cents":    attrs.Total,
		"test_mode":      attrs.TestMode || event.Meta.TestMode,
	}
	if id := strings.TrimSpace(event.Data.ID); id != "" {
		fields["external_order_id"] = id
	}
	if v := strings.TrimSpace(attrs.UserEmail); v != "" {
		fields["customer_email"] = v
	}
	if v := strings.TrimSpace(attrs.UserName); v != "" {
		fields["customer_name"] = v
	}
	if v := strings.TrimSpace(attrs.URLs.Receipt); v != "" {
		fields["receipt_url"] = v
	}
	if currency != "" {
		fields["currency"] = currency
	}
	return fields
}

func (s *Service) orderFromEvent(event *lemonsqueezy.Event, currency enums.Currency) *models.Order {
	attrs := event.Data.Attributes
	order := &models.Order{
		ExternalOrderID: optionalString(event.Data.ID),
		SessionID:       optionalString(event.Meta.SessionID()),
		CustomerEmail:   optionalString(attrs.UserEmail),
		CustomerName:    optionalString(attrs.UserName),
		Currency:        enums.CurrencyUSD,
		SubtotalCents:   attrs.Subtotal,
		TaxCents:        attrs.Tax,
		TotalCents:      attrs.Total,
		Status:          enums.OrderStatusPending,
		DeliveryStatus:  enums.DeliveryStatusPending,
		TestMode:        attrs.TestMode || event.Meta.TestMode,
		ReceiptURL:      optionalString(attrs.URLs.Receipt),
	}
	if attrs.IsPaid() {
		order.Status = enums.OrderStatusCompleted
	}
	if currency != "" {
		order.Currency = currency
	}
	return order
}

func (s *Service) incMetric(event, result string) {
	if s.metrics != nil {
		s.metrics.IncWebhook(event, result)
	}
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
