package models

import (
	"time"

	"github.com/craftmart/craftmart-backend/pkg/enums"
)

// Product is a purchasable in-game bundle. Commands are templates rendered at
// fulfillment time with {player}, {quantity} and {order_id}.
type Product struct {
	ID          uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	CategoryID  uint64         `gorm:"column:category_id;not null;index"`
	Slug        string         `gorm:"column:slug;not null;uniqueIndex:products_slug_key"`
	Name        string         `gorm:"column:name;not null"`
	Description *string        `gorm:"column:description"`
	ImageURL    *string        `gorm:"column:image_url"`
	PriceCents  int64          `gorm:"column:price_cents;not null"`
	Currency    enums.Currency `gorm:"column:currency;type:text;not null;default:'USD'"`
	Active      bool           `gorm:"column:active;not null;default:true"`
	Commands    []string       `gorm:"column:commands;type:jsonb;serializer:json"`
	SortOrder   int            `gorm:"column:sort_order;not null;default:0"`
	Category    *Category      `gorm:"foreignKey:CategoryID"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
