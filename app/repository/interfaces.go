package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CallBio/app/models"
)

// UserRepository resolves accounts for API key authentication.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, *models.UserSettings, error)
	TouchAPIKeyUsage(ctx context.Context, settingsID uint, at time.Time) error
}

// BioOwner is a user whose bio may be shared in meetings.
type BioOwner struct {
	UserID uint
	Email  string
}

// BioRepository reads shareable bios (public with a non-empty short bio).
type BioRepository interface {
	// FindShareableByEmail matches users.email exactly, case included.
	FindShareableByEmail(ctx context.Context, email string) (*BioOwner, error)
	// FindShareableByEmails matches lowercased addresses in one query.
	FindShareableByEmails(ctx context.Context, emails []string) ([]BioOwner, error)
}

// MeetingRepository persists meetings keyed by the vendor meeting id.
type MeetingRepository interface {
	UpsertStarted(ctx context.Context, meeting *models.Meeting) error
	GetByExternalID(ctx context.Context, externalID string) (*models.Meeting, error)
	MarkEnded(ctx context.Context, externalID string, endTime *time.Time, duration int) (int64, error)
	RecountParticipants(ctx context.Context, meetingID uint) error
	SetAutoBioSharing(ctx context.Context, externalID string, enabled bool) (int64, error)
	List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error)
	ListCreatedSince(ctx context.Context, since time.Time, limit int) ([]models.Meeting, error)
}

// ParticipantRepository persists meeting participants.
type ParticipantRepository interface {
	Upsert(ctx context.Context, participant *models.MeetingParticipant) error
	GetByID(ctx context.Context, id uint) (*models.MeetingParticipant, error)
	MarkLeft(ctx context.Context, meetingID uint, externalParticipantID string, leaveTime *time.Time, duration int) (int64, error)
	// MarkBioShared flips bio_shared from false to true and reports whether this call did it.
	MarkBioShared(ctx context.Context, id uint) (bool, error)
	ListByMeeting(ctx context.Context, meetingID uint) ([]models.MeetingParticipant, error)
}

// WebhookEventRepository is the append-only log of vendor deliveries.
type WebhookEventRepository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	// Claim sets claim_key on a row that holds no claim yet. A second claim of
	// the same key fails with gorm.ErrDuplicatedKey.
	Claim(ctx context.Context, id uint, key string) error
	MarkProcessed(ctx context.Context, id uint, note *string, at time.Time) error
	MarkFailed(ctx context.Context, id uint, errText string) error
	GetByID(ctx context.Context, id uint) (*models.WebhookEvent, error)
	Stats(ctx context.Context, since time.Time) ([]models.WebhookEventStats, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User         UserRepository
	Bio          BioRepository
	Meeting      MeetingRepository
	Participant  ParticipantRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Bio:          NewBioRepository(db),
		Meeting:      NewMeetingRepository(db),
		Participant:  NewParticipantRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
