package biosharing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/CallBio/internal/pkg/mail"
)

type AttemptResult string

const (
	Delivered   AttemptResult = "delivered"
	Unavailable AttemptResult = "unavailable"
	Failed      AttemptResult = "failed"
)

const (
	ChannelChat  = "chat"
	ChannelEmail = "email"
)

// Notice is what a channel announces: a participant with a bio joined.
type Notice struct {
	MeetingExternalID string
	MeetingTopic      string
	HostEmail         string
	ParticipantName   string
	ParticipantEmail  string
	BioURL            string
	Message           string
}

// Attempt is the result of one channel trying to deliver a Notice.
type Attempt struct {
	Channel string        `json:"channel"`
	Result  AttemptResult `json:"result"`
	Reason  string        `json:"reason,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func (a Attempt) String() string {
	s := a.Channel + ": " + string(a.Result)
	if a.Reason != "" {
		s += " (" + a.Reason + ")"
	}
	if a.Error != "" {
		s += " " + a.Error
	}
	return s
}

// Channel delivers notices to one audience. Deliver must not panic and
// should return once ctx is done.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n Notice) Attempt
}

// ChatSender posts into a live meeting's chat.
type ChatSender interface {
	Configured() bool
	SendChatMessage(ctx context.Context, meetingID, text string) error
}

// ChatChannel posts the notice into the meeting chat.
type ChatChannel struct {
	sender ChatSender
}

func NewChatChannel(sender ChatSender) *ChatChannel {
	return &ChatChannel{sender: sender}
}

func (c *ChatChannel) Name() string { return ChannelChat }

func (c *ChatChannel) Deliver(ctx context.Context, n Notice) Attempt {
	if c.sender == nil || !c.sender.Configured() {
		return Attempt{Channel: ChannelChat, Result: Unavailable, Reason: "zoom_not_configured"}
	}
	if err := c.sender.SendChatMessage(ctx, n.MeetingExternalID, n.Message); err != nil {
		return failed(ChannelChat, "", err)
	}
	return Attempt{Channel: ChannelChat, Result: Delivered}
}

// EmailChannel tells the meeting host about the participant by email.
type EmailChannel struct {
	mailer mail.Mailer
}

func NewEmailChannel(mailer mail.Mailer) *EmailChannel {
	return &EmailChannel{mailer: mailer}
}

func (c *EmailChannel) Name() string { return ChannelEmail }

func (c *EmailChannel) Deliver(ctx context.Context, n Notice) Attempt {
	if c.mailer == nil {
		return Attempt{Channel: ChannelEmail, Result: Unavailable, Reason: "mailer_not_configured"}
	}
	if strings.TrimSpace(n.HostEmail) == "" {
		return Attempt{Channel: ChannelEmail, Result: Failed, Reason: ReasonHostEmailMissing}
	}
	if err := c.mailer.Send(ctx, hostEmail(n)); err != nil {
		return failed(ChannelEmail, "", err)
	}
	return Attempt{Channel: ChannelEmail, Result: Delivered}
}

func hostEmail(n Notice) mail.Message {
	topic := n.MeetingTopic
	if topic == "" {
		topic = "meeting " + n.MeetingExternalID
	}
	text := fmt.Sprintf(
		"Hello!\n\n%s (%s) has joined your meeting %q and has a bio available:\n\n"+
			"👤 %s\n📧 %s\n🔗 Bio: %s\n\nBest regards,\nCallBio",
		n.ParticipantName, n.ParticipantEmail, topic,
		n.ParticipantName, n.ParticipantEmail, n.BioURL,
	)
	return mail.Message{
		To:      n.HostEmail,
		Subject: "New Participant Bio Available - " + topic,
		Text:    text,
	}
}

func failed(channel, reason string, err error) Attempt {
	a := Attempt{Channel: channel, Result: Failed, Reason: reason}
	if errors.Is(err, context.DeadlineExceeded) {
		a.Reason = "timeout"
	}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}
