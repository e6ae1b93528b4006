package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CallBio/app/models"
)

type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a webhook event repository backed by GORM.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *webhookEventRepository) Claim(ctx context.Context, id uint, key string) error {
	tx := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND claim_key IS NULL", id).
		UpdateColumn("claim_key", key)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id uint, note *string, at time.Time) error {
	updates := map[string]interface{}{
		"processed":    true,
		"processed_at": at,
	}
	if note != nil {
		updates["error_message"] = *note
	}
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND processed = ?", id, false).
		UpdateColumns(updates).Error
}

// MarkFailed records the error and releases the claim so a redelivery can retry.
func (r *webhookEventRepository) MarkFailed(ctx context.Context, id uint, errText string) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND processed = ?", id, false).
		UpdateColumns(map[string]interface{}{
			"error_message": errText,
			"claim_key":     gorm.Expr("NULL"),
		}).Error
}

func (r *webhookEventRepository) GetByID(ctx context.Context, id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *webhookEventRepository) Stats(ctx context.Context, since time.Time) ([]models.WebhookEventStats, error) {
	var stats []models.WebhookEventStats
	err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Select(
			"event_type, COUNT(*) AS total, "+
				"COUNT(CASE WHEN processed = ? THEN 1 END) AS processed, "+
				"COUNT(CASE WHEN error_message IS NOT NULL AND error_message <> ? THEN 1 END) AS errors, "+
				"COUNT(CASE WHEN error_message = ? THEN 1 END) AS duplicates",
			true, models.DuplicateDeliveryMessage, models.DuplicateDeliveryMessage,
		).
		Where("received_at > ?", since).
		Group("event_type").
		Order("total DESC").
		Scan(&stats).Error
	return stats, err
}
