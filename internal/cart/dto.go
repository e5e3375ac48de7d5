package cart

import (
	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	"github.com/craftmart/craftmart-backend/pkg/money"
)

const (
	// MinQuantity and MaxQuantity bound one cart line; 64 is a full stack.
	MinQuantity = 1
	MaxQuantity = 64
)

// CartView is the cart as the storefront renders it.
type CartView struct {
	SessionID     string     `json:"sessionId"`
	Items         []CartLine `json:"items"`
	ItemCount     int        `json:"itemCount"`
	SubtotalCents int64      `json:"subtotalCents"`
	Currency      string     `json:"currency"`
	SubtotalLabel string     `json:"subtotalLabel"`
}

// CartLine is a single product line priced from the live product.
type CartLine struct {
	ProductID      uint64  `json:"productId"`
	Slug           string  `json:"slug"`
	Name           string  `json:"name"`
	ImageURL       *string `json:"imageUrl,omitempty"`
	Quantity       int     `json:"quantity"`
	UnitPriceCents int64   `json:"unitPriceCents"`
	LineTotalCents int64   `json:"lineTotalCents"`
	Available      bool    `json:"available"`
}

// AddItemInput adds qty of a product, creating the cart on first use.
type AddItemInput struct {
	SessionID string
	UserID    *string
	ProductID uint64
	Quantity  int
}

// UpdateItemInput sets an absolute quantity; zero removes the line.
type UpdateItemInput struct {
	SessionID string
	ProductID uint64
	Quantity  int
}

func emptyView(sessionID string) *CartView {
	return &CartView{
		SessionID:     sessionID,
		Items:         []CartLine{},
		Currency:      string(enums.CurrencyUSD),
		SubtotalLabel: money.Format(0, enums.CurrencyUSD),
	}
}

// NewCartView prices each line from its product. Lines whose product is gone
// or inactive are listed as unavailable and excluded from the subtotal.
func NewCartView(cart *models.Cart) *CartView {
	if cart == nil {
		return emptyView("")
	}
	view := emptyView(cart.SessionID)
	currency := enums.CurrencyUSD
	for _, item := range cart.Items {
		line := CartLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
		if p := item.Product; p != nil {
			line.Slug = p.Slug
			line.Name = p.Name
			line.ImageURL = p.ImageURL
			line.UnitPriceCents = p.PriceCents
			line.Available = p.Active
			if p.Currency != "" {
				currency = p.Currency
			}
		}
		if line.Available {
			line.LineTotalCents = money.LineTotal(line.UnitPriceCents, line.Quantity)
			view.SubtotalCents += line.LineTotalCents
			view.ItemCount += line.Quantity
		}
		view.Items = append(view.Items, line)
	}
	view.Currency = string(currency)
	view.SubtotalLabel = money.Format(view.SubtotalCents, currency)
	return view
}
