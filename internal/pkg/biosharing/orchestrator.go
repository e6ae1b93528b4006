package biosharing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CallBio/app/repository"
	"github.com/ManuelReschke/CallBio/internal/pkg/metrics"
)

// DefaultChannelTimeout bounds a single channel attempt.
const DefaultChannelTimeout = 10 * time.Second

type Status string

const (
	StatusNotAttempted Status = "not_attempted"
	StatusShared       Status = "shared"
	StatusFailed       Status = "failed"
)

const (
	ReasonAutoSharingDisabled = "auto_sharing_disabled"
	ReasonAlreadyShared       = "already_shared"
	ReasonSharingFailed       = "sharing_failed"
	ReasonHostEmailMissing    = "host_email_missing"
	ReasonServiceError        = "service_error"
)

// Request identifies the participant whose bio should be announced.
type Request struct {
	MeetingExternalID string
	ParticipantID     uint
	Email             string
	Name              string
	BioURL            string
}

// Outcome reports what happened to a sharing request.
type Outcome struct {
	Success  bool      `json:"success"`
	Status   Status    `json:"status"`
	Method   string    `json:"method,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Shared reports whether a channel delivered the bio.
func (o Outcome) Shared() bool { return o.Status == StatusShared }

// Orchestrator tries the channels in order until one delivers.
type Orchestrator struct {
	meetings     repository.MeetingRepository
	participants repository.ParticipantRepository
	channels     []Channel
	timeout      time.Duration
	logger       zerolog.Logger
}

type Option func(*Orchestrator)

// WithChannelTimeout overrides DefaultChannelTimeout.
func WithChannelTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func NewOrchestrator(meetings repository.MeetingRepository, participants repository.ParticipantRepository, channels []Channel, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		meetings:     meetings,
		participants: participants,
		channels:     channels,
		timeout:      DefaultChannelTimeout,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BuildMessage is the chat text announcing a participant's bio.
func BuildMessage(name, bioURL string) string {
	return fmt.Sprintf("👋 %s has joined! Check out their bio: %s 🔗", name, bioURL)
}

// Share announces the participant's bio through the first channel that
// delivers. Failures are reported in the Outcome, never as an error.
func (o *Orchestrator) Share(ctx context.Context, req Request) Outcome {
	logger := o.logger.With().
		Str("meeting_id", req.MeetingExternalID).
		Uint("participant_id", req.ParticipantID).
		Logger()

	outcome := o.share(ctx, req, logger)
	outcome.Success = outcome.Shared()
	metrics.BioShares.WithLabelValues(string(outcome.Status), outcome.Method).Inc()

	evt := logger.Info()
	if outcome.Status == StatusFailed {
		evt = logger.Warn()
	}
	evt.Str("status", string(outcome.Status)).
		Str("method", outcome.Method).
		Str("reason", outcome.Reason).
		Str("error", outcome.Error).
		Msg("bio sharing finished")
	return outcome
}

func (o *Orchestrator) share(ctx context.Context, req Request, logger zerolog.Logger) Outcome {
	meeting, err := o.meetings.GetByExternalID(ctx, req.MeetingExternalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Outcome{Status: StatusNotAttempted, Reason: ReasonAutoSharingDisabled}
		}
		return Outcome{Status: StatusFailed, Reason: ReasonServiceError, Error: err.Error()}
	}
	if !meeting.AutoBioSharing {
		return Outcome{Status: StatusNotAttempted, Reason: ReasonAutoSharingDisabled}
	}

	participant, err := o.participants.GetByID(ctx, req.ParticipantID)
	if err != nil {
		return Outcome{Status: StatusFailed, Reason: ReasonServiceError, Error: err.Error()}
	}
	if participant.BioShared {
		return Outcome{Status: StatusNotAttempted, Reason: ReasonAlreadyShared}
	}

	notice := Notice{
		MeetingExternalID: meeting.ExternalID,
		MeetingTopic:      meeting.Topic,
		HostEmail:         meeting.HostEmail,
		ParticipantName:   req.Name,
		ParticipantEmail:  req.Email,
		BioURL:            req.BioURL,
		Message:           BuildMessage(req.Name, req.BioURL),
	}

	attempts := make([]Attempt, 0, len(o.channels))
	for _, ch := range o.channels {
		attempt := o.attempt(ctx, ch, notice)
		attempts = append(attempts, attempt)
		metrics.ChannelAttempts.WithLabelValues(attempt.Channel, string(attempt.Result)).Inc()
		logger.Debug().Str("attempt", attempt.String()).Msg("bio sharing attempt")
		if attempt.Result != Delivered {
			continue
		}

		out := Outcome{Status: StatusShared, Method: attempt.Channel, Message: notice.Message, Attempts: attempts}
		flipped, err := o.participants.MarkBioShared(ctx, req.ParticipantID)
		if err != nil {
			// delivered but bio_shared not stored; the summary must not count it
			logger.Error().Err(err).Msg("failed to mark bio as shared")
			out.Status = StatusFailed
			out.Reason = ReasonServiceError
			out.Error = fmt.Sprintf("mark bio shared: %v", err)
			return out
		}
		if !flipped {
			logger.Info().Msg("bio was marked shared by a concurrent delivery")
		}
		return out
	}

	return Outcome{
		Status:   StatusFailed,
		Reason:   ReasonSharingFailed,
		Message:  notice.Message,
		Error:    summarize(attempts),
		Attempts: attempts,
	}
}

// attempt runs one channel under its own deadline. A channel that outlives
// the deadline is reported as failed.
func (o *Orchestrator) attempt(parent context.Context, ch Channel, n Notice) Attempt {
	ctx, cancel := context.WithTimeout(parent, o.timeout)
	defer cancel()

	done := make(chan Attempt, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Attempt{Channel: ch.Name(), Result: Failed, Error: fmt.Sprintf("panic: %v", r)}
			}
		}()
		done <- ch.Deliver(ctx, n)
	}()

	select {
	case a := <-done:
		if a.Channel == "" {
			a.Channel = ch.Name()
		}
		return a
	case <-ctx.Done():
		return failed(ch.Name(), "", ctx.Err())
	}
}

func summarize(attempts []Attempt) string {
	if len(attempts) == 0 {
		return "no channels configured"
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, "; ")
}
