package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/craftmart/craftmart-backend/internal/orders"
	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	"github.com/craftmart/craftmart-backend/pkg/logger"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	defaultBatchSize   = 50
	defaultMaxAttempts = 5
)

const unacknowledgedReason = "delivery not acknowledged by game server"

var errNoPlayer = errors.New("order has no player linked")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindProductsByIDs(ctx context.Context, ids []uint64) ([]models.Product, error)
}

type streamPublisher interface {
	Publish(ctx context.Context, stream string, values map[string]any) (string, error)
}

type fulfillmentMetrics interface {
	IncFulfillment(result string)
}

// DispatcherParams configure the dispatcher.
type DispatcherParams struct {
	Orders      orders.Repository
	Products    productLoader
	Publisher   streamPublisher
	Tx          txRunner
	Metrics     fulfillmentMetrics
	Logger      *logger.Logger
	Stream      string
	BatchSize   int
	MaxAttempts int
	// AckTimeout re-queues processing deliveries older than this. Zero disables it.
	AckTimeout  time.Duration
}

// Dispatcher moves paid orders into delivery.
type Dispatcher struct {
	orders      orders.Repository
	products    productLoader
	publisher   streamPublisher
	tx          txRunner
	metrics     fulfillmentMetrics
	logg        *logger.Logger
	stream      string
	batchSize   int
	maxAttempts int
	ackTimeout  time.Duration
	now         func() time.Time
}

// NewDispatcher validates params and applies defaults.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("stream publisher required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stream == "" {
		return nil, fmt.Errorf("stream name required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &Dispatcher{
		orders:      params.Orders,
		products:    params.Products,
		publisher:   params.Publisher,
		tx:          params.Tx,
		metrics:     params.Metrics,
		logg:        params.Logger,
		stream:      params.Stream,
		batchSize:   batch,
		maxAttempts: attempts,
		ackTimeout:  params.AckTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Message is the stream entry consumed by the game-server plugin.
type Message struct {
	OrderID  uint64   `json:"order_id"`
	Player   string   `json:"player"`
	Commands []string `json:"commands"`
	TestMode bool     `json:"test_mode"`
}

// DispatchPending handles one batch of paid orders awaiting delivery and
// returns how many were published. Per-order failures are recorded on the
// order and combined into the returned error.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	if err := d.requeueUnacknowledged(ctx); err != nil {
		return 0, err
	}
	pending, err := d.orders.FindPaidAwaitingDelivery(ctx, d.maxAttempts, d.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load orders awaiting delivery: %w", err)
	}

	var (
		dispatched int
		errs       error
	)
	for i := range pending {
		if err := d.Dispatch(ctx, &pending[i]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %d: %w", pending[i].ID, err))
			continue
		}
		dispatched++
	}
	return dispatched, errs
}

// Dispatch renders and publishes the commands of a single order. The order
// must be loaded with Items and Player.
func (d *Dispatcher) Dispatch(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order required")
	}
	ctx = d.logg.WithOrderID(ctx, order.ID)

	msg, perItem, err := d.build(ctx, order)
	if err != nil {
		return d.fail(ctx, order, err)
	}

	err = d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := d.orders.WithTx(tx)
		for itemID, commands := range perItem {
			if err := repo.SetItemCommands(ctx, itemID, commands); err != nil {
				return fmt.Errorf("store item commands: %w", err)
			}
		}
		return repo.Update(ctx, order.ID, map[string]any{
			"delivery_status":   enums.DeliveryStatusProcessing,
			"delivery_attempts": order.DeliveryAttempts + 1,
			"delivery_error":    nil,
			"updated_at":        d.now(),
		})
	})
	if err != nil {
		d.incMetric("error")
		return err
	}

	payload, err := json.Marshal(msg.Commands)
	if err != nil {
		return d.fail(ctx, order, err)
	}
	entryID, err := d.publisher.Publish(ctx, d.stream, map[string]any{
		"order_id":  strconv.FormatUint(msg.OrderID, 10),
		"player":    msg.Player,
		"commands":  string(payload),
		"test_mode": strconv.FormatBool(msg.TestMode),
	})
	if err != nil {
		return d.fail(ctx, order, fmt.Errorf("publish to %s: %w", d.stream, err))
	}

	d.incMetric("dispatched")
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"stream_entry":  entryID,
		"command_count": len(msg.Commands),
		"player":        msg.Player,
	}), "fulfillment.dispatched")
	return nil
}

// requeueUnacknowledged fails processing deliveries past the ack timeout so the
// attempt budget decides whether they are published again.
func (d *Dispatcher) requeueUnacknowledged(ctx context.Context) error {
	if d.ackTimeout <= 0 {
		return nil
	}
	cutoff := d.now().Add(-d.ackTimeout)
	n, err := d.orders.RequeueStaleProcessing(ctx, cutoff, unacknowledgedReason)
	if err != nil {
		return fmt.Errorf("requeue unacknowledged deliveries: %w", err)
	}
	if n > 0 {
		d.logg.Warn(d.logg.WithFields(ctx, map[string]any{
			"requeued": n,
			"cutoff":   cutoff,
		}), "fulfillment.requeued_unacknowledged")
	}
	return nil
}

func (d *Dispatcher) build(ctx context.Context, order *models.Order) (*Message, map[uint64][]string, error) {
	if order.Player == nil || order.Player.Username == "" {
		return nil, nil, errNoPlayer
	}
	ids := make([]uint64, 0, len(order.Items))
	for _, item := range order.Items {
		if item.ProductID != nil {
			ids = append(ids, *item.ProductID)
		}
	}
	products, err := d.products.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[uint64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	msg := &Message{OrderID: order.ID, Player: order.Player.Username, TestMode: order.TestMode}
	perItem := make(map[uint64][]string, len(order.Items))
	for _, item := range order.Items {
		if item.ProductID == nil {
			continue
		}
		product, ok := byID[*item.ProductID]
		if !ok {
			continue
		}
		commands := Expand(product.Commands, msg.Player, item.Quantity, order.ID)
		if len(commands) == 0 {
			continue
		}
		perItem[item.ID] = commands
		msg.Commands = append(msg.Commands, commands...)
	}
	if len(msg.Commands) == 0 {
		return nil, nil, errors.New("no commands to dispatch")
	}
	return msg, perItem, nil
}

// fail records the failure on the order and counts the attempt.
func (d *Dispatcher) fail(ctx context.Context, order *models.Order, cause error) error {
	d.incMetric("failed")
	d.logg.Warn(d.logg.WithField(ctx, "reason", cause.Error()), "fulfillment.failed")
	message := cause.Error()
	updates := map[string]any{
		"delivery_status":   enums.DeliveryStatusFailed,
		"delivery_attempts": order.DeliveryAttempts + 1,
		"delivery_error":    message,
	}
	if err := d.orders.Update(ctx, order.ID, updates); err != nil {
		return multierr.Append(cause, fmt.Errorf("record delivery failure: %w", err))
	}
	return cause
}

func (d *Dispatcher) incMetric(result string) {
	if d.metrics != nil {
		d.metrics.IncFulfillment(result)
	}
}
