package controllers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/internal/pkg/bio"
	"github.com/ManuelReschke/CallBio/internal/pkg/zoom"
)

// ZoomAPI is the part of the vendor API the proxy routes read. *zoom.Client satisfies it.
type ZoomAPI interface {
	Configured() bool
	GetMeetingDetails(ctx context.Context, meetingID string) (*zoom.MeetingDetails, error)
	GetMeetingParticipants(ctx context.Context, meetingID string) ([]zoom.ReportParticipant, error)
}

// ZoomController proxies meeting data from the vendor API
type ZoomController struct {
	client ZoomAPI
	bios   BioLinks
}

func NewZoomController(client ZoomAPI, bios BioLinks) *ZoomController {
	return &ZoomController{client: client, bios: bios}
}

type attendeeWithBio struct {
	zoom.ReportParticipant
	BioURL *string `json:"bio_url"`
	HasBio bool    `json:"has_bio"`
}

func (zc *ZoomController) HandleMeetingDetails(c *fiber.Ctx) error {
	if !zc.configured() {
		return notConfigured(c)
	}
	meetingID := c.Params("id")
	details, err := zc.client.GetMeetingDetails(c.UserContext(), meetingID)
	if err != nil {
		log.Error().Err(err).Str("meeting_id", meetingID).Msg("fetch meeting details failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch meeting details", "message": err.Error()})
	}
	return c.JSON(details)
}

func (zc *ZoomController) HandleMeetingAttendees(c *fiber.Ctx) error {
	if !zc.configured() {
		return notConfigured(c)
	}
	meetingID := c.Params("id")
	attendees, err := zc.client.GetMeetingParticipants(c.UserContext(), meetingID)
	if err != nil {
		log.Error().Err(err).Str("meeting_id", meetingID).Msg("fetch meeting attendees failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch meeting attendees", "message": err.Error()})
	}
	if attendees == nil {
		attendees = []zoom.ReportParticipant{}
	}
	return c.JSON(fiber.Map{
		"meeting_id":      meetingID,
		"total_attendees": len(attendees),
		"attendees":       attendees,
	})
}

// HandleMeetingAttendeesWithBios joins the attendee report with bio links.
// A failed bio lookup degrades to has_bio=false for everyone.
func (zc *ZoomController) HandleMeetingAttendeesWithBios(c *fiber.Ctx) error {
	if !zc.configured() {
		return notConfigured(c)
	}
	ctx := c.UserContext()
	meetingID := c.Params("id")
	attendees, err := zc.client.GetMeetingParticipants(ctx, meetingID)
	if err != nil {
		log.Error().Err(err).Str("meeting_id", meetingID).Msg("fetch meeting attendees failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch attendees with bio information", "message": err.Error()})
	}

	emails := make([]string, 0, len(attendees))
	for _, a := range attendees {
		if strings.Contains(a.UserEmail, "@") {
			emails = append(emails, a.UserEmail)
		}
	}

	lookup := map[string]bio.Link{}
	if len(emails) > 0 {
		lookup, err = zc.bios.LookupMany(ctx, emails)
		if err != nil {
			log.Warn().Err(err).Str("meeting_id", meetingID).Msg("bio lookup failed, continuing without bios")
			lookup = make(map[string]bio.Link, len(emails))
			for _, e := range emails {
				lookup[models.NormalizeEmail(e)] = bio.Link{}
			}
		}
	}

	out := make([]attendeeWithBio, 0, len(attendees))
	for _, a := range attendees {
		link := lookup[models.NormalizeEmail(a.UserEmail)]
		out = append(out, attendeeWithBio{ReportParticipant: a, BioURL: link.BioURL, HasBio: link.HasBio})
	}

	return c.JSON(fiber.Map{
		"meeting_id":      meetingID,
		"total_attendees": len(out),
		"attendees":       out,
		"lookup":          lookup,
		"total_requested": len(emails),
		"total_found":     bio.CountFound(lookup),
	})
}

func (zc *ZoomController) configured() bool {
	return zc.client != nil && zc.client.Configured()
}

func notConfigured(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Zoom API integration not configured"})
}
