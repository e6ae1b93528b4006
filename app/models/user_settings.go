package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	apiKeyPrefix     = "cb_"
	apiKeyEntropy    = 32
	apiKeyDisplayLen = 16
)

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// UserSettings carries the operator API key of a user. Only the hash and a
// display prefix are stored; the raw key is shown once by cmd/apikey.
type UserSettings struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           uint           `gorm:"uniqueIndex" json:"user_id"`
	APIKeyHash       string         `gorm:"type:char(64);default:'';index" json:"-"`
	APIKeyPrefix     string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt  *time.Time     `json:"api_key_created_at"`
	APIKeyLastUsedAt *time.Time     `json:"api_key_last_used_at"`
	APIKeyRevokedAt  *time.Time     `json:"api_key_revoked_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// GetOrCreateUserSettings loads the settings row of userID, inserting an
// empty one on first use.
func GetOrCreateUserSettings(db *gorm.DB, userID uint) (*UserSettings, error) {
	us := UserSettings{}
	if err := db.Where(UserSettings{UserID: userID}).FirstOrCreate(&us).Error; err != nil {
		return nil, fmt.Errorf("user settings for %d: %w", userID, err)
	}
	return &us, nil
}

func (us *UserSettings) HasActiveAPIKey() bool {
	return us != nil && us.APIKeyHash != "" && us.APIKeyRevokedAt == nil
}

// IssueAPIKey replaces any previous key and returns the new raw key.
// The row is not saved.
func (us *UserSettings) IssueAPIKey() (string, error) {
	secret := make([]byte, apiKeyEntropy)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("read api key entropy: %w", err)
	}
	raw := apiKeyPrefix + strings.ToLower(apiKeyEncoding.EncodeToString(secret))

	issued := time.Now().UTC()
	*us = UserSettings{
		ID:              us.ID,
		UserID:          us.UserID,
		APIKeyHash:      HashAPIKey(raw),
		APIKeyPrefix:    raw[:min(len(raw), apiKeyDisplayLen)],
		APIKeyCreatedAt: &issued,
		CreatedAt:       us.CreatedAt,
		UpdatedAt:       us.UpdatedAt,
		DeletedAt:       us.DeletedAt,
	}
	return raw, nil
}

// RevokeAPIKey forgets the key but keeps the row and its revocation time.
func (us *UserSettings) RevokeAPIKey() {
	revoked := time.Now().UTC()
	us.APIKeyHash, us.APIKeyPrefix = "", ""
	us.APIKeyLastUsedAt = nil
	us.APIKeyRevokedAt = &revoked
}

// HashAPIKey is the lookup form of a raw key as sent by a client.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
