package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/craftmart/craftmart-backend/pkg/db"
	"github.com/craftmart/craftmart-backend/pkg/db/models"
	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindActiveProduct(ctx context.Context, id uint64) (*models.Product, error)
}

// Service manages session-scoped carts.
type Service interface {
	GetCart(ctx context.Context, sessionID string) (*CartView, error)
	AddItem(ctx context.Context, input AddItemInput) (*CartView, error)
	UpdateItem(ctx context.Context, input UpdateItemInput) (*CartView, error)
	RemoveItem(ctx context.Context, sessionID string, productID uint64) (*CartView, error)
	Clear(ctx context.Context, sessionID string) error
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products productLoader
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, tx: tx, products: products}, nil
}

func (s *service) GetCart(ctx context.Context, sessionID string) (*CartView, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	cart, err := s.repo.FindBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyView(sessionID), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return NewCartView(cart), nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*CartView, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if err := validateQuantity(input.Quantity, MinQuantity); err != nil {
		return nil, err
	}
	if _, err := s.loadProduct(ctx, input.ProductID); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cart, err := s.ensureCart(ctx, repo, sessionID, input.UserID)
		if err != nil {
			return err
		}

		item, err := repo.FindItem(ctx, cart.ID, input.ProductID)
		switch {
		case err == nil:
			next := item.Quantity + input.Quantity
			if next > MaxQuantity {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity cannot exceed %d", MaxQuantity))
			}
			if err := repo.UpdateItemQuantity(ctx, item.ID, next); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			line := &models.CartItem{CartID: cart.ID, ProductID: input.ProductID, Quantity: input.Quantity}
			if err := repo.CreateItem(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, sessionID)
}

func (s *service) UpdateItem(ctx context.Context, input UpdateItemInput) (*CartView, error) {
	if input.Quantity == 0 {
		return s.RemoveItem(ctx, input.SessionID, input.ProductID)
	}
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if err := validateQuantity(input.Quantity, MinQuantity); err != nil {
		return nil, err
	}

	cart, err := s.loadCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if err := s.repo.UpdateItemQuantity(ctx, item.ID, input.Quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	return s.GetCart(ctx, sessionID)
}

func (s *service) RemoveItem(ctx context.Context, sessionID string, productID uint64) (*CartView, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	cart, err := s.loadCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	removed, err := s.repo.DeleteItem(ctx, cart.ID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.GetCart(ctx, sessionID)
}

// Clear empties the cart. Clearing a session without a cart is a no-op.
func (s *service) Clear(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	cart, err := s.repo.FindBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) ensureCart(ctx context.Context, repo CartRepository, sessionID string, userID *string) (*models.Cart, error) {
	cart, err := repo.FindBySession(ctx, sessionID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart = &models.Cart{SessionID: sessionID, UserID: userID}
	if err := repo.Create(ctx, cart); err != nil {
		if db.IsUniqueViolation(err, "carts_session_id_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart created concurrently, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return cart, nil
}

func (s *service) loadCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	cart, err := s.repo.FindBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeCartNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) loadProduct(ctx context.Context, productID uint64) (*models.Product, error) {
	if productID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.products.FindActiveProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func validateQuantity(qty, min int) error {
	if qty < min || qty > MaxQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between %d and %d", min, MaxQuantity)).
			WithDetails(map[string]any{"quantity": qty})
	}
	return nil
}
