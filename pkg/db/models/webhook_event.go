package models

import "time"

// WebhookEvent records every verified provider callback for later inspection.
type WebhookEvent struct {
	ID              uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	Provider        string     `gorm:"column:provider;not null"`
	EventName       string     `gorm:"column:event_name;not null"`
	ExternalID      *string    `gorm:"column:external_id;index"`
	Payload         string     `gorm:"column:payload;type:text;not null"`
	ProcessedAt     *time.Time `gorm:"column:processed_at"`
	ProcessingError *string    `gorm:"column:processing_error"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
