package models

import "time"

// Player is the in-game identity an order delivers to.
type Player struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"column:username;not null;uniqueIndex:players_username_key" json:"username"`
	UUID      *string   `gorm:"column:uuid" json:"uuid"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Player) TableName() string { return "players" }
