package models

import "time"

// MeetingParticipant is one attendee of a meeting. A participant joining the
// same meeting twice reuses the row; BioShared only ever goes false to true.
type MeetingParticipant struct {
	ID                    uint       `gorm:"primaryKey" json:"-"`
	MeetingID             uint       `gorm:"not null;uniqueIndex:ux_meeting_participants_meeting_participant,priority:1" json:"-"`
	ExternalParticipantID string     `gorm:"type:varchar(128);not null;uniqueIndex:ux_meeting_participants_meeting_participant,priority:2" json:"participant_id"`
	Email                 string     `gorm:"type:varchar(200);default:'';index" json:"participant_email"`
	Name                  string     `gorm:"type:varchar(200);default:''" json:"participant_name"`
	JoinTime              *time.Time `json:"join_time"`
	LeaveTime             *time.Time `json:"leave_time"`
	Duration              int        `gorm:"not null;default:0" json:"duration"`
	HasBio                bool       `gorm:"not null;default:false" json:"has_bio"`
	BioURL                *string    `gorm:"type:varchar(255)" json:"bio_url"`
	BioShared             bool       `gorm:"not null;default:false" json:"bio_shared"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"-"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"-"`
}
