package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CallBio/internal/pkg/middleware"
	"github.com/ManuelReschke/CallBio/internal/pkg/ratelimit"
)

const (
	defaultRateLimitMax    = 60
	defaultRateLimitWindow = time.Minute
)

type ApiRouter struct {
	h Handlers
}

func (a ApiRouter) InstallRouter(app *fiber.App) {
	limit, window := a.h.RateLimitMax, a.h.RateLimitWindow
	if limit <= 0 {
		limit = defaultRateLimitMax
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}

	api := app.Group("/api", ratelimit.New(a.h.LimiterStorage, limit, window))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1", middleware.APIKeyAuthMiddleware(a.h.Users))

	v1.Post("/bios/lookup", a.h.BioLookup.HandleBioLookup)

	meetings := v1.Group("/meetings")
	meetings.Get("/", a.h.Meeting.HandleListMeetings)
	meetings.Get("/:id", a.h.Meeting.HandleGetMeeting)
	meetings.Patch("/:id/bio-sharing", a.h.Meeting.HandleToggleBioSharing)
	meetings.Get("/:id/bio-summary", a.h.Meeting.HandleBioSummary)

	zoom := v1.Group("/zoom/meetings")
	zoom.Get("/:id", a.h.Zoom.HandleMeetingDetails)
	zoom.Get("/:id/attendees", a.h.Zoom.HandleMeetingAttendees)
	zoom.Get("/:id/attendees-with-bios", a.h.Zoom.HandleMeetingAttendeesWithBios)
}

func NewApiRouter(h Handlers) *ApiRouter {
	return &ApiRouter{h: h}
}
