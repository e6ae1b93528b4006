package models

import "time"

const (
	MeetingStatusActive    = "active"
	MeetingStatusCompleted = "completed"
)

// Meeting mirrors one vendor meeting, keyed by the vendor's meeting id.
type Meeting struct {
	ID               uint                 `gorm:"primaryKey" json:"-"`
	ExternalID       string               `gorm:"type:varchar(64);not null;uniqueIndex:ux_meetings_external_id" json:"meeting_id"`
	ExternalUUID     string               `gorm:"type:varchar(128);default:''" json:"meeting_uuid"`
	HostID           string               `gorm:"type:varchar(64);default:''" json:"host_id"`
	HostEmail        string               `gorm:"type:varchar(200);default:'';index" json:"host_email"`
	Topic            string               `gorm:"type:varchar(300);default:''" json:"topic"`
	Timezone         string               `gorm:"type:varchar(64);default:''" json:"timezone"`
	StartTime        *time.Time           `gorm:"index" json:"start_time"`
	EndTime          *time.Time           `json:"end_time"`
	Duration         int                  `gorm:"not null;default:0" json:"duration"`
	ParticipantCount int                  `gorm:"not null;default:0" json:"participant_count"`
	AutoBioSharing   bool                 `gorm:"not null;default:true" json:"auto_bio_sharing"`
	BioSummarySent   bool                 `gorm:"not null;default:false" json:"bio_summary_sent"`
	CreatedAt        time.Time            `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
	Participants     []MeetingParticipant `gorm:"foreignKey:MeetingID;constraint:OnDelete:CASCADE" json:"-"`
}

// Status derives active/completed from the start and end timestamps.
func (m *Meeting) Status() string {
	switch {
	case m.EndTime != nil:
		return MeetingStatusCompleted
	case m.StartTime != nil:
		return MeetingStatusActive
	default:
		return ""
	}
}

// MeetingFilter narrows a meeting listing.
type MeetingFilter struct {
	HostEmail string
	Status    string
	Limit     int
}
