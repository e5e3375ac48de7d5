package lemonsqueezywebhook

import (
	"context"
	"time"

	"github.com/craftmart/craftmart-backend/pkg/db/models"
	"gorm.io/gorm"
)

// EventRepository stores the audit trail of verified provider callbacks.
type EventRepository interface {
	Record(ctx context.Context, event *models.WebhookEvent) error
	MarkProcessed(ctx context.Context, id uint64, processedAt time.Time, processingErr error) error
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository builds the webhook_events repository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Record(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) MarkProcessed(ctx context.Context, id uint64, processedAt time.Time, processingErr error) error {
	updates := map[string]any{
		"processed_at":     processedAt,
		"processing_error": nil,
	}
	if processingErr != nil {
		updates["processing_error"] = processingErr.Error()
	}
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}
