package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CallBio/app/models"
)

type bioRepository struct {
	db *gorm.DB
}

// NewBioRepository creates a bio repository backed by GORM.
func NewBioRepository(db *gorm.DB) BioRepository {
	return &bioRepository{db: db}
}

func (r *bioRepository) shareable(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("users.id AS user_id, users.email AS email").
		Joins("INNER JOIN bios ON bios.user_id = users.id").
		Where("bios.is_public = ?", true).
		Where("bios.short_bio IS NOT NULL AND TRIM(bios.short_bio) <> ''")
}

func (r *bioRepository) FindShareableByEmail(ctx context.Context, email string) (*BioOwner, error) {
	if email == "" {
		return nil, gorm.ErrRecordNotFound
	}
	query := r.shareable(ctx)
	if r.db.Dialector.Name() == "mysql" {
		// the default MySQL collation ignores case
		query = query.Where("BINARY users.email = ?", email)
	} else {
		query = query.Where("users.email = ?", email)
	}

	var owners []BioOwner
	if err := query.Order("users.id ASC").Limit(1).Scan(&owners).Error; err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &owners[0], nil
}

func (r *bioRepository) FindShareableByEmails(ctx context.Context, emails []string) ([]BioOwner, error) {
	if len(emails) == 0 {
		return nil, errors.New("no emails given")
	}
	var owners []BioOwner
	err := r.shareable(ctx).
		Where("LOWER(users.email) IN ?", emails).
		Order("users.id ASC").
		Scan(&owners).Error
	if err != nil {
		return nil, err
	}
	return owners, nil
}
