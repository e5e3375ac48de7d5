package orders

import (
	"context"
	"time"

	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"github.com/craftmart/craftmart-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository defines persistence operations for the orders and order_items tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uint64) (*models.Order, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Order, error)
	Update(ctx context.Context, id uint64, updates map[string]any) error
	List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, int64, error)
	FindStalePendingWithoutCheckout(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	FindPaidAwaitingDelivery(ctx context.Context, maxAttempts, limit int) ([]models.Order, error)
	RequeueStaleProcessing(ctx context.Context, cutoff time.Time, reason string) (int64, error)
	SetItemCommands(ctx context.Context, itemID uint64, commands []string) error
}
