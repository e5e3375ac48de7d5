package models

import "time"

// OrderItem snapshots a cart line at checkout time. Only Commands changes later.
type OrderItem struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID        uint64    `gorm:"column:order_id;not null;index" json:"orderId"`
	ProductID      *uint64   `gorm:"column:product_id" json:"productId"`
	ProductName    string    `gorm:"column:product_name;not null" json:"productName"`
	Quantity       int       `gorm:"column:quantity;not null" json:"quantity"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null" json:"unitPriceCents"`
	TotalCents     int64     `gorm:"column:total_cents;not null" json:"totalCents"`
	Commands       []string  `gorm:"column:commands;type:jsonb;serializer:json" json:"commands"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (OrderItem) TableName() string { return "order_items" }
