package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/internal/pkg/meetings"
	"github.com/ManuelReschke/CallBio/internal/pkg/metrics"
	"github.com/ManuelReschke/CallBio/internal/pkg/zoom"
)

const (
	resultProcessed = "processed"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"
	resultRejected  = "rejected"
	resultInvalid   = "invalid"
)

// MeetingEvents applies decoded events to meeting state.
type MeetingEvents interface {
	OnMeetingStarted(ctx context.Context, ev zoom.MeetingStarted) (*models.Meeting, error)
	OnMeetingEnded(ctx context.Context, ev zoom.MeetingEnded) error
	OnParticipantJoined(ctx context.Context, ev zoom.ParticipantJoined) (*meetings.JoinResult, error)
	OnParticipantLeft(ctx context.Context, ev zoom.ParticipantLeft) error
}

// Result is the HTTP status and JSON body answering a delivery.
type Result struct {
	Status int
	Body   fiber.Map
}

// Processor verifies, records and dispatches vendor deliveries.
type Processor struct {
	secret   string
	store    *EventStore
	meetings MeetingEvents
	logger   zerolog.Logger
	now      func() time.Time
}

func NewProcessor(secret string, store *EventStore, meetings MeetingEvents, logger zerolog.Logger) *Processor {
	return &Processor{
		secret:   secret,
		store:    store,
		meetings: meetings,
		logger:   logger,
		now:      time.Now,
	}
}

// Verify checks the signature headers. A non-nil error is always a *zoom.SignatureError.
func (p *Processor) Verify(signature, timestamp string, body []byte) error {
	err := zoom.VerifyWebhookSignature(p.secret, signature, timestamp, body, p.now())
	if err != nil {
		var sigErr *zoom.SignatureError
		if errors.As(err, &sigErr) {
			metrics.SignatureRejections.WithLabelValues(sigErr.Reason).Inc()
			metrics.WebhookDeliveries.WithLabelValues("unknown", resultRejected).Inc()
			p.logger.Warn().Str("reason", sigErr.Reason).Msg("webhook rejected")
		}
	}
	return err
}

// Process handles a verified body.
func (p *Processor) Process(ctx context.Context, body []byte) Result {
	start := time.Now()

	env, err := zoom.ParseEnvelope(body)
	if err != nil {
		metrics.WebhookDeliveries.WithLabelValues("unknown", resultInvalid).Inc()
		p.logger.Warn().Err(err).Msg("unparseable webhook body")
		return Result{Status: fiber.StatusBadRequest, Body: fiber.Map{"error": "Invalid JSON payload"}}
	}
	defer func() {
		metrics.WebhookDuration.WithLabelValues(env.Type).Observe(time.Since(start).Seconds())
	}()

	logger := p.logger.With().Str("event_type", env.Type).Str("meeting_id", env.MeetingID).Logger()

	ev, err := p.store.Record(ctx, env, body)
	if err != nil {
		logger.Error().Err(err).Msg("failed to record webhook event")
		metrics.WebhookDeliveries.WithLabelValues(env.Type, resultFailed).Inc()
		return processingFailed(err)
	}

	if env.Type == zoom.EventURLValidation {
		return p.validateURL(ctx, ev, env, logger)
	}

	if err := p.store.Claim(ctx, ev); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			if markErr := p.store.MarkDuplicate(ctx, ev); markErr != nil {
				logger.Warn().Err(markErr).Msg("failed to close duplicate delivery")
			}
			logger.Info().Uint("event_id", ev.ID).Msg("duplicate delivery skipped")
			metrics.WebhookDeliveries.WithLabelValues(env.Type, resultDuplicate).Inc()
			return Result{Status: fiber.StatusOK, Body: fiber.Map{
				"success":   true,
				"duplicate": true,
				"message":   fmt.Sprintf("Event %s already processed", env.Type),
			}}
		}
		logger.Error().Err(err).Msg("failed to claim webhook event")
		metrics.WebhookDeliveries.WithLabelValues(env.Type, resultFailed).Inc()
		return processingFailed(err)
	}

	res, err := p.dispatch(ctx, env)
	if err != nil {
		logger.Error().Err(err).Uint("event_id", ev.ID).Msg("webhook processing failed")
		if markErr := p.store.MarkFailed(ctx, ev, err.Error()); markErr != nil {
			logger.Error().Err(markErr).Msg("failed to record webhook error")
		}
		metrics.WebhookDeliveries.WithLabelValues(env.Type, resultFailed).Inc()
		return processingFailed(err)
	}

	if err := p.store.MarkProcessed(ctx, ev); err != nil {
		logger.Error().Err(err).Msg("failed to mark webhook event processed")
		metrics.WebhookDeliveries.WithLabelValues(env.Type, resultFailed).Inc()
		return processingFailed(err)
	}
	metrics.WebhookDeliveries.WithLabelValues(env.Type, resultProcessed).Inc()
	return res
}

func (p *Processor) validateURL(ctx context.Context, ev *models.WebhookEvent, env *zoom.Envelope, logger zerolog.Logger) Result {
	decoded, err := zoom.Decode(env)
	if err != nil {
		logger.Warn().Err(err).Msg("url validation without plainToken")
		if markErr := p.store.MarkFailed(ctx, ev, err.Error()); markErr != nil {
			logger.Error().Err(markErr).Msg("failed to record webhook error")
		}
		metrics.WebhookDeliveries.WithLabelValues(env.Type, resultInvalid).Inc()
		return Result{Status: fiber.StatusBadRequest, Body: fiber.Map{"error": "Missing plainToken"}}
	}
	challenge := decoded.(zoom.URLValidation)
	if err := p.store.MarkProcessed(ctx, ev); err != nil {
		logger.Warn().Err(err).Msg("failed to mark url validation processed")
	}
	metrics.WebhookDeliveries.WithLabelValues(env.Type, resultProcessed).Inc()
	return Result{Status: fiber.StatusOK, Body: fiber.Map{
		"plainToken":     challenge.PlainToken,
		"encryptedToken": zoom.EncryptURLValidationToken(p.secret, challenge.PlainToken),
	}}
}

func (p *Processor) dispatch(ctx context.Context, env *zoom.Envelope) (Result, error) {
	decoded, err := zoom.Decode(env)
	if err != nil {
		return Result{}, err
	}

	switch ev := decoded.(type) {
	case zoom.MeetingStarted:
		if _, err := p.meetings.OnMeetingStarted(ctx, ev); err != nil {
			return Result{}, err
		}
		return ok(fiber.Map{"success": true, "message": "Meeting started event processed"}), nil

	case zoom.MeetingEnded:
		if err := p.meetings.OnMeetingEnded(ctx, ev); err != nil {
			return Result{}, err
		}
		return ok(fiber.Map{"success": true, "message": "Meeting ended event processed"}), nil

	case zoom.ParticipantJoined:
		join, err := p.meetings.OnParticipantJoined(ctx, ev)
		if errors.Is(err, meetings.ErrMeetingNotFound) {
			p.logger.Info().Str("meeting_id", ev.MeetingID).Str("participant_id", ev.Participant.ID).Msg("participant joined unknown meeting")
			return ok(fiber.Map{"success": false, "message": "Meeting not found"}), nil
		}
		if err != nil {
			return Result{}, err
		}
		body := fiber.Map{
			"success":    true,
			"message":    "Participant joined event processed",
			"has_bio":    join.HasBio,
			"bio_url":    join.BioURL,
			"bio_shared": join.BioShared,
			"sharing":    nil,
		}
		if join.Sharing != nil {
			body["sharing"] = join.Sharing
		}
		return ok(body), nil

	case zoom.ParticipantLeft:
		if err := p.meetings.OnParticipantLeft(ctx, ev); err != nil {
			return Result{}, err
		}
		return ok(fiber.Map{"success": true, "message": "Participant left event processed"}), nil

	case zoom.Unrecognized:
		p.logger.Info().Str("event_type", ev.Type).Msg("unhandled webhook event")
		return ok(fiber.Map{"success": true, "message": fmt.Sprintf("Event %s received but not handled", ev.Type)}), nil

	default:
		return ok(fiber.Map{"success": true, "message": fmt.Sprintf("Event %s received but not handled", decoded.EventType())}), nil
	}
}

func ok(body fiber.Map) Result {
	return Result{Status: fiber.StatusOK, Body: body}
}

func processingFailed(err error) Result {
	return Result{Status: fiber.StatusInternalServerError, Body: fiber.Map{
		"success": false,
		"error":   "Webhook processing failed",
		"message": err.Error(),
	}}
}
