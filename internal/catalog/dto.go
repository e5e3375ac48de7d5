package catalog

import (
	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"github.com/craftmart/craftmart-backend/pkg/money"
)

// CategoryDTO is the public category payload.
type CategoryDTO struct {
	ID          uint64  `json:"id"`
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// ProductDTO is the public product payload. Command templates stay server-side.
type ProductDTO struct {
	ID           uint64  `json:"id"`
	CategoryID   uint64  `json:"categoryId"`
	CategorySlug string  `json:"categorySlug,omitempty"`
	Slug         string  `json:"slug"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	ImageURL     *string `json:"imageUrl,omitempty"`
	PriceCents   int64   `json:"priceCents"`
	Currency     string  `json:"currency"`
	PriceLabel   string  `json:"priceLabel"`
}

func NewCategoryDTO(c models.Category) CategoryDTO {
	return CategoryDTO{
		ID:          c.ID,
		Slug:        c.Slug,
		Name:        c.Name,
		Description: c.Description,
	}
}

func NewProductDTO(p models.Product) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		CategoryID:  p.CategoryID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		PriceCents:  p.PriceCents,
		Currency:    string(p.Currency),
		PriceLabel:  money.Format(p.PriceCents, p.Currency),
	}
	if p.Category != nil {
		dto.CategorySlug = p.Category.Slug
	}
	return dto
}

// CategoryProducts is the payload for one category page.
type CategoryProducts struct {
	Category CategoryDTO  `json:"category"`
	Products []ProductDTO `json:"products"`
}
