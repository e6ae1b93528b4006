package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/CallBio/internal/pkg/webhook"
	"github.com/ManuelReschke/CallBio/internal/pkg/zoom"
)

// WebhookController receives Zoom deliveries and reports pipeline health
type WebhookController struct {
	processor *webhook.Processor
	status    *webhook.StatusService
}

func NewWebhookController(processor *webhook.Processor, status *webhook.StatusService) *WebhookController {
	return &WebhookController{processor: processor, status: status}
}

// HandleZoomEvent verifies the signature before anything is stored.
func (wc *WebhookController) HandleZoomEvent(c *fiber.Ctx) error {
	// fasthttp reuses the request buffer after the handler returns
	body := append([]byte(nil), c.BodyRaw()...)

	signature := firstHeaderValue(c, "Authorization", "X-Zm-Signature")
	timestamp := firstHeaderValue(c, "X-Request-Timestamp", "X-Zm-Request-Timestamp")
	if err := wc.processor.Verify(signature, timestamp, body); err != nil {
		status := fiber.StatusUnauthorized
		var sigErr *zoom.SignatureError
		if errors.As(err, &sigErr) && sigErr.Reason == zoom.ReasonNotConfigured {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	res := wc.processor.Process(c.UserContext(), body)
	return c.Status(res.Status).JSON(res.Body)
}

// HandleZoomStatus returns delivery stats and recent meetings of the last 24h.
func (wc *WebhookController) HandleZoomStatus(c *fiber.Ctx) error {
	report, err := wc.status.Report(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("webhook status failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to get webhook status",
			"message": err.Error(),
		})
	}
	return c.JSON(report)
}
