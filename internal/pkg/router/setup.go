package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/CallBio/app/controllers"
	"github.com/ManuelReschke/CallBio/app/repository"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Handlers carries the controllers and middleware dependencies built in main.
type Handlers struct {
	Webhook   *controllers.WebhookController
	Meeting   *controllers.MeetingController
	BioLookup *controllers.BioLookupController
	Zoom      *controllers.ZoomController

	Users repository.UserRepository

	// LimiterStorage may be nil to keep /api counters in memory.
	LimiterStorage  fiber.Storage
	RateLimitMax    int
	RateLimitWindow time.Duration
}

func InstallRouter(app *fiber.App, h Handlers) {
	// Webhooks are signature-verified and stay outside the API key and limiter groups.
	setup(app, NewWebhookRouter(h), NewApiRouter(h))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
