package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/CallBio/internal/pkg/env"
)

// SMTPMailer sends emails via SMTP
type SMTPMailer struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailerFromEnv() *SMTPMailer {
	sender := env.GetEnv("SMTP_SENDER", env.GetEnv("MAIL_FROM", ""))
	if sender == "" {
		sender = "no-reply@localhost"
		log.Warn().Str("sender", sender).Msg("SMTP_SENDER not set, using default sender")
	}
	return &SMTPMailer{
		Host:     env.GetEnv("SMTP_HOST", ""),
		Port:     env.GetEnv("SMTP_PORT", "587"),
		Username: env.GetEnv("SMTP_USERNAME", ""),
		Password: env.GetEnv("SMTP_PASSWORD", ""),
		Sender:   sender,
	}
}

func (m *SMTPMailer) Name() string { return ProviderSMTP }

// Send delivers msg. net/smtp has no context support, so the call is
// abandoned (not aborted) when ctx ends first.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	var auth smtp.Auth
	if m.Username != "" && m.Password != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	addr := fmt.Sprintf("%s:%s", m.Host, m.Port)

	body := msg.HTML
	contentType := "text/html"
	if body == "" {
		body = msg.Text
		contentType = "text/plain"
	}
	raw := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", m.Sender, msg.To, msg.Subject) +
			"MIME-Version: 1.0\r\n" +
			fmt.Sprintf("Content-Type: %s; charset=UTF-8\r\n\r\n", contentType) +
			body,
	)

	send := m.sendMail
	if send == nil {
		send = smtp.SendMail
	}
	done := make(chan error, 1)
	go func() {
		done <- send(addr, auth, m.Sender, []string{msg.To}, raw)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To, err)
		}
		log.Info().Str("to", msg.To).Str("addr", addr).Msg("email sent via SMTP")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
