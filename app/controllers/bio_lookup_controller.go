package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/CallBio/internal/pkg/bio"
)

const maxLookupEmails = 100

// BioLinks resolves many addresses at once. bio.Gateway satisfies it.
type BioLinks interface {
	LookupMany(ctx context.Context, emails []string) (map[string]bio.Link, error)
}

type BioLookupController struct {
	bios BioLinks
}

func NewBioLookupController(bios BioLinks) *BioLookupController {
	return &BioLookupController{bios: bios}
}

type bioLookupRequest struct {
	Emails []string `json:"emails" validate:"required,min=1,dive,required,email"`
}

// HandleBioLookup answers POST /api/v1/bios/lookup for up to 100 addresses.
func (bc *BioLookupController) HandleBioLookup(c *fiber.Ctx) error {
	var req bioLookupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Emails array is required"})
	}
	if len(req.Emails) > maxLookupEmails {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Maximum 100 emails allowed per request"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "All emails must be valid", "message": err.Error()})
	}

	lookup, err := bc.bios.LookupMany(c.UserContext(), req.Emails)
	if err != nil {
		log.Error().Err(err).Int("emails", len(req.Emails)).Msg("bio lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return c.JSON(fiber.Map{
		"lookup":          lookup,
		"total_requested": len(req.Emails),
		"total_found":     bio.CountFound(lookup),
	})
}
