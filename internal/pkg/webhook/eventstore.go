package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/app/repository"
	"github.com/ManuelReschke/CallBio/internal/pkg/zoom"
)

// ErrDuplicateEvent means another delivery of the same occurrence holds the claim.
var ErrDuplicateEvent = errors.New("duplicate webhook delivery")

// idempotencyNamespace scopes the UUIDv5 keys of vendor deliveries.
var idempotencyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://call-bio.com/webhooks/zoom"))

// EventStore is the append-only log of deliveries. Each delivery gets a row;
// the claim on its idempotency key decides which delivery dispatches.
type EventStore struct {
	repo repository.WebhookEventRepository
	now  func() time.Time
}

func NewEventStore(repo repository.WebhookEventRepository) *EventStore {
	return &EventStore{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// IdempotencyKey derives a stable key for one vendor occurrence from event
// type, meeting id, participant id and event_ts. Participants admitted
// together share an event_ts, so the participant id keeps them apart.
// Without event_ts the body hash stands in.
func IdempotencyKey(env *zoom.Envelope, body []byte) string {
	occurrence := ""
	if env.EventTS > 0 {
		occurrence = strconv.FormatInt(env.EventTS, 10)
	} else {
		sum := sha256.Sum256(body)
		occurrence = "sha256:" + hex.EncodeToString(sum[:])
	}
	name := strings.Join([]string{env.Type, env.MeetingID, env.ParticipantID, occurrence}, "|")
	return uuid.NewSHA1(idempotencyNamespace, []byte(name)).String()
}

// Record appends the delivery.
func (s *EventStore) Record(ctx context.Context, env *zoom.Envelope, body []byte) (*models.WebhookEvent, error) {
	payload := string(env.Payload)
	if payload == "" {
		payload = "null"
	}
	ev := &models.WebhookEvent{
		EventType:         env.Type,
		ExternalMeetingID: env.MeetingID,
		IdempotencyKey:    IdempotencyKey(env, body),
		Payload:           payload,
		ReceivedAt:        s.now(),
	}
	if err := s.repo.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("record webhook event: %w", err)
	}
	return ev, nil
}

// Claim reserves the occurrence for this delivery. Returns ErrDuplicateEvent
// when another delivery holds it.
func (s *EventStore) Claim(ctx context.Context, ev *models.WebhookEvent) error {
	err := s.repo.Claim(ctx, ev.ID, ev.IdempotencyKey)
	if err == nil {
		key := ev.IdempotencyKey
		ev.ClaimKey = &key
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEvent
	}
	return fmt.Errorf("claim webhook event %d: %w", ev.ID, err)
}

// MarkProcessed closes the row. Rows already closed are left alone.
func (s *EventStore) MarkProcessed(ctx context.Context, ev *models.WebhookEvent) error {
	return s.markProcessed(ctx, ev, nil)
}

// MarkDuplicate closes a row that lost the claim without dispatching it.
func (s *EventStore) MarkDuplicate(ctx context.Context, ev *models.WebhookEvent) error {
	note := models.DuplicateDeliveryMessage
	return s.markProcessed(ctx, ev, &note)
}

func (s *EventStore) markProcessed(ctx context.Context, ev *models.WebhookEvent, note *string) error {
	at := s.now()
	if err := s.repo.MarkProcessed(ctx, ev.ID, note, at); err != nil {
		return fmt.Errorf("mark webhook event %d processed: %w", ev.ID, err)
	}
	ev.Processed = true
	ev.ProcessedAt = &at
	ev.ErrorMessage = note
	return nil
}

// MarkFailed stores the error and releases the claim so a redelivery can retry.
func (s *EventStore) MarkFailed(ctx context.Context, ev *models.WebhookEvent, errText string) error {
	if err := s.repo.MarkFailed(ctx, ev.ID, errText); err != nil {
		return fmt.Errorf("mark webhook event %d failed: %w", ev.ID, err)
	}
	ev.ErrorMessage = &errText
	ev.ClaimKey = nil
	return nil
}

// Stats aggregates deliveries received after since, per event type.
func (s *EventStore) Stats(ctx context.Context, since time.Time) ([]models.WebhookEventStats, error) {
	stats, err := s.repo.Stats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("webhook stats: %w", err)
	}
	if stats == nil {
		stats = []models.WebhookEventStats{}
	}
	return stats, nil
}
