package models

import "time"

// DuplicateDeliveryMessage marks a stored delivery that lost the claim to an
// earlier delivery of the same occurrence.
const DuplicateDeliveryMessage = "duplicate delivery"

// WebhookEvent is one received vendor delivery. Every delivery gets its own
// row. ClaimKey is set to IdempotencyKey by the single delivery allowed to
// dispatch the occurrence and cleared again when processing fails.
type WebhookEvent struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	EventType         string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	ExternalMeetingID string     `gorm:"type:varchar(64);default:'';index" json:"external_meeting_id"`
	IdempotencyKey    string     `gorm:"type:varchar(36);not null;index" json:"idempotency_key"`
	ClaimKey          *string    `gorm:"type:varchar(36);uniqueIndex:ux_webhook_events_claim_key" json:"-"`
	Payload           string     `gorm:"type:text;not null" json:"payload"`
	ReceivedAt        time.Time  `gorm:"autoCreateTime;index" json:"received_at"`
	Processed         bool       `gorm:"not null;default:false;index" json:"processed"`
	ProcessedAt       *time.Time `gorm:"default:null" json:"processed_at,omitempty"`
	ErrorMessage      *string    `gorm:"type:text" json:"error_message,omitempty"`
}

// WebhookEventStats is the per event type aggregate shown on the status endpoint.
type WebhookEventStats struct {
	EventType  string `json:"event_type"`
	Total      int64  `json:"total"`
	Processed  int64  `json:"processed"`
	Errors     int64  `json:"errors"`
	Duplicates int64  `json:"duplicates"`
}
