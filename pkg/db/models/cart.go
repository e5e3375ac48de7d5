package models

import "time"

// Cart is the pre-order staging area for one browser session.
type Cart struct {
	ID        uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID string     `gorm:"column:session_id;not null;uniqueIndex:carts_session_id_key"`
	UserID    *string    `gorm:"column:user_id"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Cart) TableName() string { return "carts" }
