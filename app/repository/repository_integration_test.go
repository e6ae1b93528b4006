package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/app/repository"
	"github.com/ManuelReschke/CallBio/internal/pkg/database"
)

var (
	sharedDB     *gorm.DB
	sharedDBErr  error
	sharedDBOnce sync.Once
)

// setupPostgres starts one Postgres container for the package and gives every
// test a clean schema.
func setupPostgres(t *testing.T) *repository.Repositories {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	sharedDBOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("callbio"),
			tcpostgres.WithUsername("callbio"),
			tcpostgres.WithPassword("callbio"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			sharedDBErr = err
			return
		}
		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			sharedDBErr = err
			return
		}
		sharedDB, sharedDBErr = database.Open(postgres.Open(dsn))
	})
	require.NoError(t, sharedDBErr)

	require.NoError(t, sharedDB.Migrator().DropTable(
		&models.WebhookEvent{}, &models.MeetingParticipant{}, &models.Meeting{},
		&models.Bio{}, &models.UserSettings{}, &models.User{},
	))
	require.NoError(t, database.AutoMigrate(sharedDB))
	return repository.NewRepositories(sharedDB)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestMeetingUpsertRefreshesOnlyStartTime(t *testing.T) {
	repos := setupPostgres(t)
	ctx := context.Background()

	first := &models.Meeting{
		ExternalID:     "85746065",
		Topic:          "Weekly sync",
		HostEmail:      "host@example.com",
		StartTime:      timePtr(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)),
		AutoBioSharing: true,
	}
	require.NoError(t, repos.Meeting.UpsertStarted(ctx, first))
	require.NotZero(t, first.ID)

	second := &models.Meeting{
		ExternalID:     "85746065",
		Topic:          "Renamed",
		StartTime:      timePtr(time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)),
		AutoBioSharing: true,
	}
	require.NoError(t, repos.Meeting.UpsertStarted(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Weekly sync", second.Topic)
	assert.Equal(t, "host@example.com", second.HostEmail)
	assert.True(t, second.StartTime.Equal(time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)))

	rows, err := repos.Meeting.MarkEnded(ctx, "unknown", timePtr(time.Now()), 10)
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestParticipantUpsertKeepsBioShared(t *testing.T) {
	repos := setupPostgres(t)
	ctx := context.Background()

	meeting := &models.Meeting{ExternalID: "1", AutoBioSharing: true, StartTime: timePtr(time.Now())}
	require.NoError(t, repos.Meeting.UpsertStarted(ctx, meeting))

	url := "https://call-bio.com/bio/7"
	p := &models.MeetingParticipant{
		MeetingID:             meeting.ID,
		ExternalParticipantID: "p1",
		Email:                 "a@example.com",
		Name:                  "Ada",
		JoinTime:              timePtr(time.Now().UTC()),
		HasBio:                true,
		BioURL:                &url,
	}
	require.NoError(t, repos.Participant.Upsert(ctx, p))

	shared, err := repos.Participant.MarkBioShared(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, shared)

	shared, err = repos.Participant.MarkBioShared(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, shared, "second flip must be a no-op")

	rejoin := &models.MeetingParticipant{
		MeetingID:             meeting.ID,
		ExternalParticipantID: "p1",
		Email:                 "a@example.com",
		Name:                  "Ada L.",
		JoinTime:              timePtr(time.Now().UTC().Add(time.Minute)),
	}
	require.NoError(t, repos.Participant.Upsert(ctx, rejoin))
	assert.Equal(t, p.ID, rejoin.ID)
	assert.True(t, rejoin.BioShared)
	assert.False(t, rejoin.HasBio)
	assert.Equal(t, "Ada L.", rejoin.Name)

	require.NoError(t, repos.Meeting.RecountParticipants(ctx, meeting.ID))
	stored, err := repos.Meeting.GetByExternalID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ParticipantCount)
}

func TestWebhookEventClaim(t *testing.T) {
	repos := setupPostgres(t)
	ctx := context.Background()

	first := &models.WebhookEvent{EventType: "meeting.started", IdempotencyKey: "k1", Payload: "{}"}
	second := &models.WebhookEvent{EventType: "meeting.started", IdempotencyKey: "k1", Payload: "{}"}
	require.NoError(t, repos.WebhookEvent.Create(ctx, first))
	require.NoError(t, repos.WebhookEvent.Create(ctx, second))

	require.NoError(t, repos.WebhookEvent.Claim(ctx, first.ID, "k1"))
	err := repos.WebhookEvent.Claim(ctx, second.ID, "k1")
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)

	require.NoError(t, repos.WebhookEvent.MarkFailed(ctx, first.ID, "boom"))
	require.NoError(t, repos.WebhookEvent.Claim(ctx, second.ID, "k1"))

	require.NoError(t, repos.WebhookEvent.MarkProcessed(ctx, second.ID, nil, time.Now().UTC()))
	stats, err := repos.WebhookEvent.Stats(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(2), stats[0].Total)
	assert.Equal(t, int64(1), stats[0].Processed)
	assert.Equal(t, int64(1), stats[0].Errors)
}

func TestBioLookupIsCaseSensitiveForExactMatch(t *testing.T) {
	repos := setupPostgres(t)
	ctx := context.Background()

	user := &models.User{Name: "Grace", Email: "Grace@Example.com"}
	require.NoError(t, sharedDB.Create(user).Error)
	require.NoError(t, sharedDB.Create(&models.Bio{UserID: user.ID, ShortBio: "Admiral", IsPublic: true}).Error)

	owner, err := repos.Bio.FindShareableByEmail(ctx, "Grace@Example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, owner.UserID)

	_, err = repos.Bio.FindShareableByEmail(ctx, "grace@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	owners, err := repos.Bio.FindShareableByEmails(ctx, []string{"grace@example.com"})
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, user.ID, owners[0].UserID)
}
