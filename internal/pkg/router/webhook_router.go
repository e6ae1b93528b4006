package router

import (
	"github.com/gofiber/fiber/v2"
)

type WebhookRouter struct {
	h Handlers
}

func (w WebhookRouter) InstallRouter(app *fiber.App) {
	hooks := app.Group("/webhooks")
	hooks.Post("/zoom/events", w.h.Webhook.HandleZoomEvent)
	hooks.Get("/zoom/status", w.h.Webhook.HandleZoomStatus)
}

func NewWebhookRouter(h Handlers) *WebhookRouter {
	return &WebhookRouter{h: h}
}
