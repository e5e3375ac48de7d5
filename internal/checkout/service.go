package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/craftmart/craftmart-backend/internal/cart"
	"github.com/craftmart/craftmart-backend/internal/orders"
	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
	"github.com/craftmart/craftmart-backend/pkg/lemonsqueezy"
	"github.com/craftmart/craftmart-backend/pkg/logger"
	"github.com/craftmart/craftmart-backend/pkg/money"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CheckoutProvider creates hosted checkouts with the payment processor.
type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, params lemonsqueezy.CheckoutParams) (*lemonsqueezy.Checkout, error)
	TestMode() bool
}

type playerResolver interface {
	Ensure(ctx context.Context, username string) (*models.Player, error)
}

type checkoutMetrics interface {
	IncCheckout(result string)
}

// Service turns a session cart into a pending order and a hosted payment URL.
type Service interface {
	Create(ctx context.Context, input Input) (*Result, error)
}

// Input carries the shopper supplied checkout fields.
type Input struct {
	SessionID   string
	UserID      *string
	Email       string
	Name        string
	PlayerName  string
	RedirectURL string
}

// Result is returned to the storefront for the redirect.
type Result struct {
	CheckoutURL string `json:"checkoutUrl"`
	OrderID     uint64 `json:"orderId"`
}

// Deps groups the checkout collaborators.
type Deps struct {
	Tx         txRunner
	Carts      cart.CartRepository
	Orders     orders.Repository
	Players    playerResolver
	Provider   CheckoutProvider
	Metrics    checkoutMetrics
	Logger     *logger.Logger
	SuccessURL func(orderID uint64) string
}

type service struct {
	tx         txRunner
	carts      cart.CartRepository
	orders     orders.Repository
	players    playerResolver
	provider   CheckoutProvider
	metrics    checkoutMetrics
	logg       *logger.Logger
	successURL func(orderID uint64) string
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	if deps.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Players == nil {
		return nil, fmt.Errorf("player resolver required")
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("checkout provider required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.SuccessURL == nil {
		return nil, fmt.Errorf("success url builder required")
	}
	return &service{
		tx:         deps.Tx,
		carts:      deps.Carts,
		orders:     deps.Orders,
		players:    deps.Players,
		provider:   deps.Provider,
		metrics:    deps.Metrics,
		logg:       deps.Logger,
		successURL: deps.SuccessURL,
	}, nil
}

// line is a cart line frozen at checkout time.
type line struct {
	product  *models.Product
	quantity int
	total    int64
}

func (s *service) Create(ctx context.Context, input Input) (*Result, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	ctx = s.logg.WithSessionID(ctx, sessionID)

	lines, currency, err := s.loadLines(ctx, sessionID)
	if err != nil {
		s.incMetric("rejected")
		return nil, err
	}

	var subtotal int64
	for _, l := range lines {
		subtotal += l.total
	}
	var tax int64
	total := subtotal + tax

	var playerID *uint64
	if name := strings.TrimSpace(input.PlayerName); name != "" {
		player, err := s.players.Ensure(ctx, name)
		if err != nil {
			s.incMetric("rejected")
			return nil, err
		}
		playerID = &player.ID
	}

	order := &models.Order{
		UserID:         input.UserID,
		SessionID:      &sessionID,
		PlayerID:       playerID,
		CustomerEmail:  optionalString(input.Email),
		CustomerName:   optionalString(input.Name),
		Currency:       currency,
		SubtotalCents:  subtotal,
		TaxCents:       tax,
		TotalCents:     total,
		Status:         enums.OrderStatusPending,
		DeliveryStatus: enums.DeliveryStatusPending,
		TestMode:       s.provider.TestMode(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		items := make([]models.OrderItem, 0, len(lines))
		for _, l := range lines {
			productID := l.product.ID
			items = append(items, models.OrderItem{
				OrderID:        order.ID,
				ProductID:      &productID,
				ProductName:    l.product.Name,
				Quantity:       l.quantity,
				UnitPriceCents: l.product.PriceCents,
				TotalCents:     l.total,
			})
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		return nil
	})
	if err != nil {
		s.incMetric("db_error")
		s.logg.Error(ctx, "checkout.order_persist_failed", err)
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID)

	redirect := strings.TrimSpace(input.RedirectURL)
	if redirect == "" {
		redirect = s.successURL(order.ID)
	}
	name, description := describe(lines, currency)

	hosted, err := s.provider.CreateCheckout(ctx, lemonsqueezy.CheckoutParams{
		OrderID:     order.ID,
		SessionID:   sessionID,
		AmountCents: total,
		ProductName: name,
		Description: description,
		Email:       strings.TrimSpace(input.Email),
		Name:        strings.TrimSpace(input.Name),
		RedirectURL: redirect,
	})
	if err != nil {
		s.incMetric("provider_error")
		s.logg.Error(ctx, "checkout.provider_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create checkout")
	}

	if err := s.orders.Update(ctx, order.ID, map[string]any{
		"checkout_id":  hosted.ID,
		"checkout_url": hosted.URL,
	}); err != nil {
		s.incMetric("db_error")
		s.logg.Error(ctx, "checkout.url_persist_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create checkout")
	}

	s.incMetric("created")
	ctx = s.logg.WithFields(ctx, map[string]any{
		"checkout_id": hosted.ID,
		"total_cents": total,
		"line_count":  len(lines),
	})
	s.logg.Info(ctx, "checkout.created")

	return &Result{CheckoutURL: hosted.URL, OrderID: order.ID}, nil
}

// loadLines validates the cart without writing anything.
func (s *service) loadLines(ctx context.Context, sessionID string) ([]line, enums.Currency, error) {
	record, err := s.carts.FindBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", pkgerrors.New(pkgerrors.CodeCartNotFound, "cart not found")
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(record.Items) == 0 {
		return nil, "", pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	lines := make([]line, 0, len(record.Items))
	var currency enums.Currency
	for _, item := range record.Items {
		product := item.Product
		if product == nil || !product.Active {
			return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "product no longer available").
				WithDetails(map[string]any{"productId": item.ProductID})
		}
		if currency == "" {
			currency = product.Currency
		} else if product.Currency != currency {
			return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "cart mixes currencies")
		}
		lines = append(lines, line{
			product:  product,
			quantity: item.Quantity,
			total:    money.LineTotal(product.PriceCents, item.Quantity),
		})
	}
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	return lines, currency, nil
}

// describe builds the hosted checkout title and the itemised description.
func describe(lines []line, currency enums.Currency) (string, string) {
	var name string
	switch {
	case len(lines) == 1 && lines[0].quantity == 1:
		name = lines[0].product.Name
	case len(lines) == 1:
		name = strconv.Itoa(lines[0].quantity) + " x " + lines[0].product.Name
	default:
		name = fmt.Sprintf("%s + %d more", lines[0].product.Name, len(lines)-1)
	}

	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%d x %s (%s)", l.quantity, l.product.Name, money.Format(l.total, currency)))
	}
	return name, strings.Join(parts, ", ")
}

func (s *service) incMetric(result string) {
	if s.metrics != nil {
		s.metrics.IncCheckout(result)
	}
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
