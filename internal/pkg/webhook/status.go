package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/app/repository"
)

const (
	StatusCacheKey = "webhook:status"
	StatusCacheTTL = 15 * time.Second

	statusWindow       = 24 * time.Hour
	recentMeetingLimit = 10
)

// JSONCache stores JSON encoded values. cache.JSONCache satisfies it.
type JSONCache interface {
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dst interface{}) error
}

// StatusReport is the health view of the webhook pipeline.
type StatusReport struct {
	WebhookStats   []models.WebhookEventStats `json:"webhook_stats"`
	RecentMeetings []models.Meeting           `json:"recent_meetings"`
	Status         string                     `json:"status"`
}

type StatusService struct {
	store    *EventStore
	meetings repository.MeetingRepository
	cache    JSONCache
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStatusService builds the status view. cache may be nil.
func NewStatusService(store *EventStore, meetings repository.MeetingRepository, cache JSONCache, logger zerolog.Logger) *StatusService {
	return &StatusService{
		store:    store,
		meetings: meetings,
		cache:    cache,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Report returns the last 24h of delivery stats and recently created meetings.
func (s *StatusService) Report(ctx context.Context) (*StatusReport, error) {
	if s.cache != nil {
		var cached StatusReport
		if err := s.cache.GetJSON(ctx, StatusCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	since := s.now().Add(-statusWindow)
	stats, err := s.store.Stats(ctx, since)
	if err != nil {
		return nil, err
	}
	recent, err := s.meetings.ListCreatedSince(ctx, since, recentMeetingLimit)
	if err != nil {
		return nil, fmt.Errorf("recent meetings: %w", err)
	}
	if recent == nil {
		recent = []models.Meeting{}
	}

	report := &StatusReport{WebhookStats: stats, RecentMeetings: recent, Status: "healthy"}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, StatusCacheKey, report, StatusCacheTTL); err != nil {
			s.logger.Debug().Err(err).Msg("status cache write failed")
		}
	}
	return report, nil
}
