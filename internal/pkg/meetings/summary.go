package meetings

import (
	"math"

	"github.com/ManuelReschke/CallBio/app/models"
)

// Summary reports how many participants of a meeting have bios and how many
// of those were shared.
type Summary struct {
	MeetingID            string                      `json:"meeting_id"`
	TotalParticipants    int                         `json:"total_participants"`
	ParticipantsWithBios int                         `json:"participants_with_bios"`
	BioSharingRate       int                         `json:"bio_sharing_rate"`
	Participants         []models.MeetingParticipant `json:"participants"`
}

// BuildSummary expects participants ordered by join time. The rate is the
// rounded share percentage among participants with a bio, 0 when none has one.
func BuildSummary(meetingID string, participants []models.MeetingParticipant) Summary {
	if participants == nil {
		participants = []models.MeetingParticipant{}
	}
	withBio, shared := 0, 0
	for _, p := range participants {
		if !p.HasBio {
			continue
		}
		withBio++
		if p.BioShared {
			shared++
		}
	}

	rate := 0
	if withBio > 0 {
		rate = int(math.Round(100 * float64(shared) / float64(withBio)))
	}
	return Summary{
		MeetingID:            meetingID,
		TotalParticipants:    len(participants),
		ParticipantsWithBios: withBio,
		BioSharingRate:       rate,
		Participants:         participants,
	}
}
