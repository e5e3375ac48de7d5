package models

import "time"

// CartItem references a live product; pricing is read from the product at checkout.
type CartItem struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	CartID    uint64    `gorm:"column:cart_id;not null;uniqueIndex:cart_items_cart_product_key,priority:1"`
	ProductID uint64    `gorm:"column:product_id;not null;uniqueIndex:cart_items_cart_product_key,priority:2"`
	Quantity  int       `gorm:"column:quantity;not null"`
	Product   *Product  `gorm:"foreignKey:ProductID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartItem) TableName() string { return "cart_items" }
