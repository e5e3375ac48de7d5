package models

import "time"

type Category struct {
	ID          uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex:categories_slug_key"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	SortOrder   int       `gorm:"column:sort_order;not null;default:0"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Category) TableName() string { return "categories" }
