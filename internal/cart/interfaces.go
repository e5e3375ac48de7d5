package cart

import (
	"context"

	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"gorm.io/gorm"
)

// CartRepository persists session carts and their lines.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindBySession(ctx context.Context, sessionID string) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	FindItem(ctx context.Context, cartID, productID uint64) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uint64, quantity int) error
	DeleteItem(ctx context.Context, cartID, productID uint64) (bool, error)
	ClearItems(ctx context.Context, cartID uint64) error
}
