package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/craftmart/craftmart-backend/internal/orders"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	"github.com/craftmart/craftmart-backend/pkg/logger"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	defaultPendingAfter = 30 * time.Minute
	pendingSweepBatch   = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PendingCheckoutJobParams configure the stale checkout sweep.
type PendingCheckoutJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Orders       orders.Repository
	PendingAfter time.Duration
}

// NewPendingCheckoutJob builds the job that fails orders left pending without
// a hosted checkout URL, the state a provider error during checkout leaves.
func NewPendingCheckoutJob(params PendingCheckoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	after := params.PendingAfter
	if after <= 0 {
		after = defaultPendingAfter
	}
	return &pendingCheckoutJob{
		logg:   params.Logger,
		db:     params.DB,
		orders: params.Orders,
		after:  after,
		now:    time.Now,
	}, nil
}

type pendingCheckoutJob struct {
	logg   *logger.Logger
	db     txRunner
	orders orders.Repository
	after  time.Duration
	now    func() time.Time
}

func (j *pendingCheckoutJob) Name() string { return "pending-checkout-reconcile" }

func (j *pendingCheckoutJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	stale, err := j.orders.FindStalePendingWithoutCheckout(ctx, cutoff, pendingSweepBatch)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var (
		errs  error
		swept int
	)
	for _, order := range stale {
		ok, err := j.failOrder(ctx, order.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %d: %w", order.ID, err))
			continue
		}
		if ok {
			swept++
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"swept":      swept,
	}), "cron.pending_checkout.swept")
	return errs
}

// failOrder re-reads the order inside the transaction so a webhook that
// landed after the query wins.
func (j *pendingCheckoutJob) failOrder(ctx context.Context, id uint64) (bool, error) {
	swept := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.orders.WithTx(tx)
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if current.Status != enums.OrderStatusPending || current.CheckoutURL != nil {
			return nil
		}
		if err := repo.Update(ctx, id, map[string]any{"status": enums.OrderStatusFailed}); err != nil {
			return err
		}
		swept = true
		return nil
	})
	return swept, err
}
