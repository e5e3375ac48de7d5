package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
	"github.com/craftmart/craftmart-backend/pkg/pagination"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the admin console surface over the order store.
type Service interface {
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Get(ctx context.Context, id uint64) (*models.Order, error)
	UpdateDelivery(ctx context.Context, input UpdateDeliveryInput) (*models.Order, error)
}

type service struct {
	repo Repository
	tx   txRunner
	now  func() time.Time
}

// NewService builds the admin order service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo: repo,
		tx:   tx,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	params := pagination.Params{Page: input.Page, Limit: input.Limit}.Normalize()

	if input.Filters.Status != nil && !input.Filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if input.Filters.DeliveryStatus != nil && !input.Filters.DeliveryStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status filter")
	}

	orders, total, err := s.repo.List(ctx, params, input.Filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &ListResult{
		Data:       orders,
		Pagination: pagination.NewMeta(params, total),
	}, nil
}

func (s *service) Get(ctx context.Context, id uint64) (*models.Order, error) {
	if id == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return order, nil
}

// UpdateDelivery applies a manual delivery override. Delivered stamps
// delivered_at; every other state clears it.
func (s *service) UpdateDelivery(ctx context.Context, input UpdateDeliveryInput) (*models.Order, error) {
	if input.OrderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return mapLoadError(err)
		}

		if order.Status == enums.OrderStatusRefunded || order.Status == enums.OrderStatusFailed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery cannot change on a refunded or failed order").
				WithDetails(map[string]any{"status": order.Status})
		}
		if !order.DeliveryStatus.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery status transition not allowed").
				WithDetails(map[string]any{"from": order.DeliveryStatus, "to": input.Status})
		}

		updates := map[string]any{
			"delivery_status": input.Status,
			"delivery_error":  normalizeError(input.Error),
			"delivered_at":    nil,
		}
		if input.Status == enums.DeliveryStatusDelivered {
			updates["delivered_at"] = s.now()
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}

		updated, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return mapLoadError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func normalizeError(msg *string) *string {
	if msg == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*msg)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
