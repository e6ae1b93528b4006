package meetings

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/app/repository"
	"github.com/ManuelReschke/CallBio/internal/pkg/bio"
	"github.com/ManuelReschke/CallBio/internal/pkg/biosharing"
	"github.com/ManuelReschke/CallBio/internal/pkg/zoom"
)

// ErrMeetingNotFound is returned when an operation needs a meeting row that does not exist.
var ErrMeetingNotFound = errors.New("meeting not found")

// BioLookup resolves a participant email to a bio link.
type BioLookup interface {
	LookupExact(ctx context.Context, email string) (bio.Link, error)
}

// Sharer announces a participant's bio.
type Sharer interface {
	Share(ctx context.Context, req biosharing.Request) biosharing.Outcome
}

// Service keeps meeting and participant rows in step with vendor events.
type Service struct {
	meetings     repository.MeetingRepository
	participants repository.ParticipantRepository
	bios         BioLookup
	sharer       Sharer
	logger       zerolog.Logger
}

func NewService(meetings repository.MeetingRepository, participants repository.ParticipantRepository, bios BioLookup, sharer Sharer, logger zerolog.Logger) *Service {
	return &Service{
		meetings:     meetings,
		participants: participants,
		bios:         bios,
		sharer:       sharer,
		logger:       logger,
	}
}

// JoinResult describes the participant row after a join was applied.
type JoinResult struct {
	Participant *models.MeetingParticipant
	HasBio      bool
	BioURL      *string
	BioShared   bool
	Sharing     *biosharing.Outcome
}

// DetailView is a meeting with its participants and bio summary.
type DetailView struct {
	Meeting      *models.Meeting             `json:"meeting"`
	Participants []models.MeetingParticipant `json:"participants"`
	BioSummary   Summary                     `json:"bio_summary"`
}

// OnMeetingStarted creates the meeting or, on a repeated start, refreshes its start time.
func (s *Service) OnMeetingStarted(ctx context.Context, ev zoom.MeetingStarted) (*models.Meeting, error) {
	m := &models.Meeting{
		ExternalID:     ev.MeetingID,
		ExternalUUID:   ev.UUID,
		HostID:         ev.HostID,
		HostEmail:      ev.HostEmail,
		Topic:          ev.Topic,
		Timezone:       ev.Timezone,
		StartTime:      ev.StartTime,
		AutoBioSharing: true,
	}
	if err := s.meetings.UpsertStarted(ctx, m); err != nil {
		return nil, fmt.Errorf("upsert meeting %s: %w", ev.MeetingID, err)
	}
	return m, nil
}

// OnMeetingEnded stores the end time. An unknown meeting is ignored.
func (s *Service) OnMeetingEnded(ctx context.Context, ev zoom.MeetingEnded) error {
	rows, err := s.meetings.MarkEnded(ctx, ev.MeetingID, ev.EndTime, ev.Duration)
	if err != nil {
		return fmt.Errorf("end meeting %s: %w", ev.MeetingID, err)
	}
	if rows == 0 {
		s.logger.Info().Str("meeting_id", ev.MeetingID).Msg("meeting ended for unknown meeting, nothing to update")
	}
	return nil
}

// OnParticipantJoined records the participant, resolves their bio and, when
// one exists, asks the sharer to announce it. Returns ErrMeetingNotFound
// without writing when the meeting is unknown.
func (s *Service) OnParticipantJoined(ctx context.Context, ev zoom.ParticipantJoined) (*JoinResult, error) {
	meeting, err := s.meetings.GetByExternalID(ctx, ev.MeetingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, fmt.Errorf("load meeting %s: %w", ev.MeetingID, err)
	}

	link, err := s.bios.LookupExact(ctx, ev.Participant.Email)
	if err != nil {
		return nil, err
	}

	p := &models.MeetingParticipant{
		MeetingID:             meeting.ID,
		ExternalParticipantID: ev.Participant.ID,
		Email:                 ev.Participant.Email,
		Name:                  ev.Participant.Name,
		JoinTime:              ev.JoinTime,
		HasBio:                link.HasBio,
		BioURL:                link.BioURL,
	}
	if err := s.participants.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert participant %s: %w", ev.Participant.ID, err)
	}
	if err := s.meetings.RecountParticipants(ctx, meeting.ID); err != nil {
		return nil, fmt.Errorf("recount participants of %s: %w", ev.MeetingID, err)
	}

	res := &JoinResult{
		Participant: p,
		HasBio:      link.HasBio,
		BioURL:      link.BioURL,
		BioShared:   p.BioShared,
	}
	if link.HasBio && link.BioURL != nil && s.sharer != nil {
		outcome := s.sharer.Share(ctx, biosharing.Request{
			MeetingExternalID: ev.MeetingID,
			ParticipantID:     p.ID,
			Email:             p.Email,
			Name:              p.Name,
			BioURL:            *link.BioURL,
		})
		res.Sharing = &outcome
		if outcome.Shared() {
			res.BioShared = true
		}
	}
	return res, nil
}

// OnParticipantLeft stores leave time and duration. Unknown meetings or
// participants are ignored.
func (s *Service) OnParticipantLeft(ctx context.Context, ev zoom.ParticipantLeft) error {
	meeting, err := s.meetings.GetByExternalID(ctx, ev.MeetingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info().Str("meeting_id", ev.MeetingID).Msg("participant left unknown meeting, nothing to update")
			return nil
		}
		return fmt.Errorf("load meeting %s: %w", ev.MeetingID, err)
	}
	rows, err := s.participants.MarkLeft(ctx, meeting.ID, ev.Participant.ID, ev.LeaveTime, ev.Duration)
	if err != nil {
		return fmt.Errorf("update participant %s: %w", ev.Participant.ID, err)
	}
	if rows == 0 {
		s.logger.Info().Str("meeting_id", ev.MeetingID).Str("participant_id", ev.Participant.ID).Msg("participant left without a join record")
	}
	return nil
}

// List returns meetings newest first.
func (s *Service) List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error) {
	filter.Limit = repository.ClampMeetingLimit(filter.Limit)
	return s.meetings.List(ctx, filter)
}

// Get loads one meeting with participants and its bio summary.
func (s *Service) Get(ctx context.Context, externalID string) (*DetailView, error) {
	meeting, participants, err := s.load(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return &DetailView{
		Meeting:      meeting,
		Participants: participants,
		BioSummary:   BuildSummary(externalID, participants),
	}, nil
}

// Summary computes the bio summary of a meeting. It never writes.
func (s *Service) Summary(ctx context.Context, externalID string) (*Summary, error) {
	_, participants, err := s.load(ctx, externalID)
	if err != nil {
		return nil, err
	}
	summary := BuildSummary(externalID, participants)
	return &summary, nil
}

// SetAutoBioSharing toggles automatic sharing for future joins.
func (s *Service) SetAutoBioSharing(ctx context.Context, externalID string, enabled bool) error {
	if _, err := s.meetings.GetByExternalID(ctx, externalID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMeetingNotFound
		}
		return fmt.Errorf("load meeting %s: %w", externalID, err)
	}
	if _, err := s.meetings.SetAutoBioSharing(ctx, externalID, enabled); err != nil {
		return fmt.Errorf("toggle bio sharing for %s: %w", externalID, err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, externalID string) (*models.Meeting, []models.MeetingParticipant, error) {
	meeting, err := s.meetings.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrMeetingNotFound
		}
		return nil, nil, fmt.Errorf("load meeting %s: %w", externalID, err)
	}
	participants, err := s.participants.ListByMeeting(ctx, meeting.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list participants of %s: %w", externalID, err)
	}
	return meeting, participants, nil
}
