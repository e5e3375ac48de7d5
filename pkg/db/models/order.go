package models

import (
	"time"

	"github.com/craftmart/craftmart-backend/pkg/enums"
)

// Order is one purchase attempt. Rows are never deleted.
type Order struct {
	ID               uint64               `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalOrderID  *string              `gorm:"column:external_order_id;uniqueIndex:orders_external_order_id_key" json:"externalOrderId"`
	CheckoutID       *string              `gorm:"column:checkout_id" json:"checkoutId"`
	UserID           *string              `gorm:"column:user_id" json:"userId"`
	SessionID        *string              `gorm:"column:session_id;index" json:"sessionId"`
	PlayerID         *uint64              `gorm:"column:player_id" json:"playerId"`
	CustomerEmail    *string              `gorm:"column:customer_email" json:"customerEmail"`
	CustomerName     *string              `gorm:"column:customer_name" json:"customerName"`
	Currency         enums.Currency       `gorm:"column:currency;type:text;not null;default:'USD'" json:"currency"`
	SubtotalCents    int64                `gorm:"column:subtotal_cents;not null;default:0" json:"subtotalCents"`
	TaxCents         int64                `gorm:"column:tax_cents;not null;default:0" json:"taxCents"`
	TotalCents       int64                `gorm:"column:total_cents;not null;default:0" json:"totalCents"`
	Status           enums.OrderStatus    `gorm:"column:status;type:order_status;not null;default:'pending'" json:"status"`
	DeliveryStatus   enums.DeliveryStatus `gorm:"column:delivery_status;type:delivery_status;not null;default:'pending'" json:"deliveryStatus"`
	DeliveryAttempts int                  `gorm:"column:delivery_attempts;not null;default:0" json:"deliveryAttempts"`
	DeliveryError    *string              `gorm:"column:delivery_error" json:"deliveryError"`
	DeliveredAt      *time.Time           `gorm:"column:delivered_at" json:"deliveredAt"`
	Refunded         bool                 `gorm:"column:refunded;not null;default:false" json:"refunded"`
	RefundedAt       *time.Time           `gorm:"column:refunded_at" json:"refundedAt"`
	TestMode         bool                 `gorm:"column:test_mode;not null;default:false" json:"testMode"`
	CheckoutURL      *string              `gorm:"column:checkout_url" json:"checkoutUrl"`
	ReceiptURL       *string              `gorm:"column:receipt_url" json:"receiptUrl"`
	Items            []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Player           *Player              `gorm:"foreignKey:PlayerID" json:"player,omitempty"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Order) TableName() string { return "orders" }
