package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/internal/pkg/meetings"
)

// MeetingController exposes stored meetings to API key holders
type MeetingController struct {
	service *meetings.Service
}

func NewMeetingController(service *meetings.Service) *MeetingController {
	return &MeetingController{service: service}
}

type bioSharingToggle struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// HandleListMeetings supports host_email, status (active|completed) and limit.
func (mc *MeetingController) HandleListMeetings(c *fiber.Ctx) error {
	filter := models.MeetingFilter{
		HostEmail: strings.TrimSpace(c.Query("host_email")),
		Status:    strings.TrimSpace(c.Query("status")),
	}
	switch filter.Status {
	case "", models.MeetingStatusActive, models.MeetingStatusCompleted:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be active or completed"})
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be a positive integer"})
		}
		filter.Limit = limit
	}

	list, err := mc.service.List(c.UserContext(), filter)
	if err != nil {
		log.Error().Err(err).Msg("meeting list failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch meetings"})
	}
	if list == nil {
		list = []models.Meeting{}
	}
	return c.JSON(fiber.Map{"meetings": list, "total": len(list)})
}

func (mc *MeetingController) HandleGetMeeting(c *fiber.Ctx) error {
	view, err := mc.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mc.handleError(c, err, "Failed to fetch meeting details")
	}
	return c.JSON(view)
}

// HandleToggleBioSharing expects {"enabled": bool}.
func (mc *MeetingController) HandleToggleBioSharing(c *fiber.Ctx) error {
	var req bioSharingToggle
	if err := c.BodyParser(&req); err != nil || validate.Struct(req) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "enabled must be a boolean"})
	}

	meetingID := c.Params("id")
	if err := mc.service.SetAutoBioSharing(c.UserContext(), meetingID, *req.Enabled); err != nil {
		return mc.handleError(c, err, "Failed to toggle bio sharing")
	}

	state := "disabled"
	if *req.Enabled {
		state = "enabled"
	}
	return c.JSON(fiber.Map{
		"success":          true,
		"meeting_id":       meetingID,
		"auto_bio_sharing": *req.Enabled,
		"message":          fmt.Sprintf("Bio sharing %s for meeting", state),
	})
}

func (mc *MeetingController) HandleBioSummary(c *fiber.Ctx) error {
	summary, err := mc.service.Summary(c.UserContext(), c.Params("id"))
	if err != nil {
		return mc.handleError(c, err, "Failed to generate bio summary")
	}
	return c.JSON(summary)
}

func (mc *MeetingController) handleError(c *fiber.Ctx, err error, message string) error {
	if errors.Is(err, meetings.ErrMeetingNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Meeting not found"})
	}
	log.Error().Err(err).Str("meeting_id", c.Params("id")).Msg(message)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
}
