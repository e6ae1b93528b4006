package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/CallBio/internal/pkg/env"
)

const (
	ProviderLog    = "log"
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
)

// Message is a single outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers messages through one transport.
type Mailer interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// NewFromEnv picks the transport named by MAIL_PROVIDER.
func NewFromEnv() (Mailer, error) {
	provider := strings.ToLower(strings.TrimSpace(env.GetEnv("MAIL_PROVIDER", ProviderLog)))
	from := env.GetEnv("MAIL_FROM", "")

	switch provider {
	case ProviderLog, "":
		return LogMailer{}, nil
	case ProviderSMTP:
		return NewSMTPMailerFromEnv(), nil
	case ProviderResend:
		apiKey := strings.TrimSpace(env.GetEnv("RESEND_API_KEY", ""))
		if apiKey == "" {
			return nil, fmt.Errorf("MAIL_PROVIDER=resend requires RESEND_API_KEY")
		}
		if from == "" {
			return nil, fmt.Errorf("MAIL_PROVIDER=resend requires MAIL_FROM")
		}
		return NewResendMailer(resend.NewClient(apiKey), from), nil
	default:
		return nil, fmt.Errorf("unknown MAIL_PROVIDER %q", provider)
	}
}

// LogMailer only logs messages. It is the default until a transport is configured.
type LogMailer struct{}

func (LogMailer) Name() string { return ProviderLog }

func (LogMailer) Send(_ context.Context, msg Message) error {
	log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("body", msg.Text).
		Msg("email notification (log transport)")
	return nil
}
