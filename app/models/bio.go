package models

import (
	"strings"
	"time"
)

// Bio is the public profile a user maintains. CallBio only reads it.
type Bio struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	FirstName string    `gorm:"type:varchar(100);default:''" json:"first_name"`
	LastName  string    `gorm:"type:varchar(100);default:''" json:"last_name"`
	JobTitle  string    `gorm:"type:varchar(150);default:''" json:"job_title"`
	Company   string    `gorm:"type:varchar(150);default:''" json:"company"`
	ShortBio  string    `gorm:"type:text" json:"short_bio"`
	IsPublic  bool      `gorm:"not null;default:true" json:"is_public"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Shareable reports whether the bio may be linked in a meeting.
func (b *Bio) Shareable() bool {
	return b != nil && b.IsPublic && strings.TrimSpace(b.ShortBio) != ""
}
