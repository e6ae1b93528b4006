package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/CallBio/app/models"
)

type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository creates a participant repository backed by GORM.
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

// Upsert inserts the participant or refreshes join and bio fields of an
// existing row. bio_shared is left as stored.
func (r *participantRepository) Upsert(ctx context.Context, participant *models.MeetingParticipant) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "meeting_id"},
			{Name: "external_participant_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"join_time",
			"email",
			"name",
			"has_bio",
			"bio_url",
			"updated_at",
		}),
	}).Create(participant).Error; err != nil {
		return err
	}

	var stored models.MeetingParticipant
	if err := db.
		Where("meeting_id = ? AND external_participant_id = ?", participant.MeetingID, participant.ExternalParticipantID).
		First(&stored).Error; err != nil {
		return err
	}
	*participant = stored
	return nil
}

func (r *participantRepository) GetByID(ctx context.Context, id uint) (*models.MeetingParticipant, error) {
	var p models.MeetingParticipant
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepository) MarkLeft(ctx context.Context, meetingID uint, externalParticipantID string, leaveTime *time.Time, duration int) (int64, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.MeetingParticipant{}).
		Where("meeting_id = ? AND external_participant_id = ?", meetingID, externalParticipantID).
		Updates(map[string]interface{}{
			"leave_time": leaveTime,
			"duration":   duration,
			"updated_at": time.Now().UTC(),
		})
	return tx.RowsAffected, tx.Error
}

func (r *participantRepository) MarkBioShared(ctx context.Context, id uint) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.MeetingParticipant{}).
		Where("id = ? AND bio_shared = ?", id, false).
		Updates(map[string]interface{}{
			"bio_shared": true,
			"updated_at": time.Now().UTC(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *participantRepository) ListByMeeting(ctx context.Context, meetingID uint) ([]models.MeetingParticipant, error) {
	var participants []models.MeetingParticipant
	err := r.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("join_time ASC").
		Order("id ASC").
		Find(&participants).Error
	return participants, err
}
