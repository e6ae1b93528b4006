package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/CallBio/app/models"
)

const (
	DefaultMeetingListLimit = 50
	MaxMeetingListLimit     = 100
)

type meetingRepository struct {
	db *gorm.DB
}

// NewMeetingRepository creates a meeting repository backed by GORM.
func NewMeetingRepository(db *gorm.DB) MeetingRepository {
	return &meetingRepository{db: db}
}

// UpsertStarted inserts the meeting or, when it already exists, only moves its start time.
func (r *meetingRepository) UpsertStarted(ctx context.Context, meeting *models.Meeting) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "external_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"start_time",
			"updated_at",
		}),
	}).Create(meeting).Error; err != nil {
		return err
	}

	// MySQL does not return the id of an updated row, read it back.
	var existing models.Meeting
	if err := db.Where("external_id = ?", meeting.ExternalID).First(&existing).Error; err != nil {
		return err
	}
	*meeting = existing
	return nil
}

func (r *meetingRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Meeting, error) {
	var m models.Meeting
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *meetingRepository) MarkEnded(ctx context.Context, externalID string, endTime *time.Time, duration int) (int64, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Meeting{}).
		Where("external_id = ?", externalID).
		Updates(map[string]interface{}{
			"end_time":   endTime,
			"duration":   duration,
			"updated_at": time.Now().UTC(),
		})
	return tx.RowsAffected, tx.Error
}

// RecountParticipants derives participant_count from the participant rows in one statement.
func (r *meetingRepository) RecountParticipants(ctx context.Context, meetingID uint) error {
	return r.db.WithContext(ctx).Exec(
		"UPDATE meetings SET participant_count = (SELECT COUNT(DISTINCT external_participant_id) FROM meeting_participants WHERE meeting_id = ?), updated_at = ? WHERE id = ?",
		meetingID, time.Now().UTC(), meetingID,
	).Error
}

func (r *meetingRepository) SetAutoBioSharing(ctx context.Context, externalID string, enabled bool) (int64, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Meeting{}).
		Where("external_id = ?", externalID).
		Updates(map[string]interface{}{
			"auto_bio_sharing": enabled,
			"updated_at":       time.Now().UTC(),
		})
	return tx.RowsAffected, tx.Error
}

func (r *meetingRepository) List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error) {
	query := r.db.WithContext(ctx).Model(&models.Meeting{})
	if filter.HostEmail != "" {
		query = query.Where("host_email = ?", filter.HostEmail)
	}
	switch filter.Status {
	case models.MeetingStatusActive:
		query = query.Where("start_time IS NOT NULL AND end_time IS NULL")
	case models.MeetingStatusCompleted:
		query = query.Where("end_time IS NOT NULL")
	}

	var meetings []models.Meeting
	err := query.Order("start_time DESC").Limit(ClampMeetingLimit(filter.Limit)).Find(&meetings).Error
	return meetings, err
}

func (r *meetingRepository) ListCreatedSince(ctx context.Context, since time.Time, limit int) ([]models.Meeting, error) {
	var meetings []models.Meeting
	err := r.db.WithContext(ctx).
		Where("created_at > ?", since).
		Order("start_time DESC").
		Limit(limit).
		Find(&meetings).Error
	return meetings, err
}

// ClampMeetingLimit applies the listing default and upper bound.
func ClampMeetingLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultMeetingListLimit
	case limit > MaxMeetingListLimit:
		return MaxMeetingListLimit
	default:
		return limit
	}
}
