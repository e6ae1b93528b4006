package bio

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/app/repository"
	"github.com/ManuelReschke/CallBio/internal/pkg/env"
)

const defaultPublicBaseURL = "https://call-bio.com"

// Link tells whether an email has a shareable bio and where it lives.
type Link struct {
	HasBio bool    `json:"has_bio"`
	BioURL *string `json:"bio_url"`
}

// Gateway answers bio lookups by participant email.
type Gateway struct {
	repo    repository.BioRepository
	baseURL string
}

func NewGateway(repo repository.BioRepository, baseURL string) *Gateway {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultPublicBaseURL
	}
	return &Gateway{repo: repo, baseURL: baseURL}
}

// NewGatewayFromEnv uses PUBLIC_BIO_BASE_URL, then PUBLIC_DOMAIN.
func NewGatewayFromEnv(repo repository.BioRepository) *Gateway {
	base := env.GetEnv("PUBLIC_BIO_BASE_URL", "")
	if strings.TrimSpace(base) == "" {
		base = env.GetEnv("PUBLIC_DOMAIN", "")
	}
	return NewGateway(repo, base)
}

// URLFor builds the public bio page of a user.
func (g *Gateway) URLFor(userID uint) string {
	return g.baseURL + "/bio/" + strconv.FormatUint(uint64(userID), 10)
}

func (g *Gateway) linkFor(userID uint) Link {
	url := g.URLFor(userID)
	return Link{HasBio: true, BioURL: &url}
}

// LookupExact matches the address exactly as given, case included. An empty
// address or an unknown one yields a Link without bio.
func (g *Gateway) LookupExact(ctx context.Context, email string) (Link, error) {
	if email == "" {
		return Link{}, nil
	}
	owner, err := g.repo.FindShareableByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Link{}, nil
		}
		return Link{}, fmt.Errorf("lookup bio: %w", err)
	}
	return g.linkFor(owner.UserID), nil
}

// LookupMany normalizes the addresses and resolves them in one query. Every
// normalized address appears in the result.
func (g *Gateway) LookupMany(ctx context.Context, emails []string) (map[string]Link, error) {
	result := make(map[string]Link, len(emails))
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		n := models.NormalizeEmail(e)
		if n == "" {
			continue
		}
		if _, seen := result[n]; seen {
			continue
		}
		result[n] = Link{}
		normalized = append(normalized, n)
	}
	if len(normalized) == 0 {
		return result, nil
	}

	owners, err := g.repo.FindShareableByEmails(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("lookup bios: %w", err)
	}
	for _, o := range owners {
		n := models.NormalizeEmail(o.Email)
		if existing, ok := result[n]; ok && !existing.HasBio {
			result[n] = g.linkFor(o.UserID)
		}
	}
	return result, nil
}

// CountFound returns how many links carry a bio.
func CountFound(links map[string]Link) int {
	n := 0
	for _, l := range links {
		if l.HasBio {
			n++
		}
	}
	return n
}
