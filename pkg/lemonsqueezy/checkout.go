package lemonsqueezy

import (
	"errors"
	"strconv"
	"strings"
)

// CheckoutParams describes a hosted checkout for one local order.
type CheckoutParams struct {
	OrderID     uint64
	SessionID   string
	AmountCents int64
	ProductName string
	Description string
	Email       string
	Name        string
	RedirectURL string
}

// Checkout is the subset of the provider response the shop stores.
type Checkout struct {
	ID  string
	URL string
}

func (p CheckoutParams) validate() error {
	if p.OrderID == 0 {
		return errors.New("order id is required")
	}
	if p.AmountCents <= 0 {
		return errors.New("amount must be positive")
	}
	if strings.TrimSpace(p.ProductName) == "" {
		return errors.New("product name is required")
	}
	return nil
}

// CustomData is round-tripped through the provider and comes back on webhooks
// as meta.custom_data.
type CustomData struct {
	OrderID   string `json:"order_id"`
	SessionID string `json:"session_id,omitempty"`
}

type checkoutRequest struct {
	Data checkoutRequestData `json:"data"`
}

type checkoutRequestData struct {
	Type          string                `json:"type"`
	Attributes    checkoutAttributes    `json:"attributes"`
	Relationships checkoutRelationships `json:"relationships"`
}

type checkoutAttributes struct {
	CustomPrice    int64          `json:"custom_price"`
	ProductOptions productOptions `json:"product_options"`
	CheckoutData   checkoutData   `json:"checkout_data"`
	TestMode       bool           `json:"test_mode"`
}

type productOptions struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

type checkoutData struct {
	Email  string     `json:"email,omitempty"`
	Name   string     `json:"name,omitempty"`
	Custom CustomData `json:"custom"`
}

type checkoutRelationships struct {
	Store   relationship `json:"store"`
	Variant relationship `json:"variant"`
}

type relationship struct {
	Data resourceIdentifier `json:"data"`
}

type resourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type checkoutResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			URL string `json:"url"`
		} `json:"attributes"`
	} `json:"data"`
}

func (p CheckoutParams) toRequest(storeID, variantID string, testMode bool) checkoutRequest {
	return checkoutRequest{
		Data: checkoutRequestData{
			Type: "checkouts",
			Attributes: checkoutAttributes{
				CustomPrice: p.AmountCents,
				ProductOptions: productOptions{
					Name:        p.ProductName,
					Description: p.Description,
					RedirectURL: p.RedirectURL,
				},
				CheckoutData: checkoutData{
					Email: strings.TrimSpace(p.Email),
					Name:  strings.TrimSpace(p.Name),
					Custom: CustomData{
						OrderID:   strconv.FormatUint(p.OrderID, 10),
						SessionID: p.SessionID,
					},
				},
				TestMode: testMode,
			},
			Relationships: checkoutRelationships{
				Store:   relationship{Data: resourceIdentifier{Type: "stores", ID: storeID}},
				Variant: relationship{Data: resourceIdentifier{Type: "variants", ID: variantID}},
			},
		},
	}
}
