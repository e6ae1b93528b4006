package zoom

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	EventURLValidation     = "endpoint.url_validation"
	EventMeetingStarted    = "meeting.started"
	EventMeetingEnded      = "meeting.ended"
	EventParticipantJoined = "meeting.participant_joined"
	EventParticipantLeft   = "meeting.participant_left"
)

// ErrInvalidEnvelope is returned for bodies that are not a webhook envelope.
var ErrInvalidEnvelope = errors.New("invalid webhook payload")

var validate = validator.New()

// FlexString accepts both JSON strings and numbers. Meeting ids arrive in either form.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// Envelope is the outer shape shared by every delivery.
type Envelope struct {
	Type    string          `json:"event"`
	EventTS int64           `json:"event_ts"`
	Payload json.RawMessage `json:"payload"`

	// MeetingID is payload.object.id when present.
	MeetingID string `json:"-"`
	// ParticipantID is set for participant events, see Participant.ID.
	ParticipantID string `json:"-"`
}

type rawObject struct {
	ID          FlexString      `json:"id"`
	UUID        string          `json:"uuid"`
	HostID      string          `json:"host_id"`
	Topic       string          `json:"topic"`
	Timezone    string          `json:"timezone"`
	StartTime   string          `json:"start_time"`
	EndTime     string          `json:"end_time"`
	Duration    int             `json:"duration"`
	Participant *rawParticipant `json:"participant"`
}

type rawParticipant struct {
	ID        FlexString `json:"id"`
	UserID    FlexString `json:"user_id"`
	UserName  string     `json:"user_name"`
	Email     string     `json:"email"`
	JoinTime  string     `json:"join_time"`
	LeaveTime string     `json:"leave_time"`
	Duration  int        `json:"duration"`
}

type rawPayload struct {
	PlainToken string     `json:"plainToken"`
	Operator   string     `json:"operator"`
	Object     *rawObject `json:"object"`
}

// ParseEnvelope reads the event name, event_ts and meeting id from a raw body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if strings.TrimSpace(env.Type) == "" {
		return nil, fmt.Errorf("%w: missing event", ErrInvalidEnvelope)
	}
	if len(env.Payload) > 0 {
		var p rawPayload
		if err := json.Unmarshal(env.Payload, &p); err == nil && p.Object != nil {
			env.MeetingID = string(p.Object.ID)
			if p.Object.Participant != nil {
				env.ParticipantID = p.Object.Participant.toParticipant().ID
			}
		}
	}
	return &env, nil
}

// Event is one of URLValidation, MeetingStarted, MeetingEnded,
// ParticipantJoined, ParticipantLeft or Unrecognized.
type Event interface {
	EventType() string
}

type URLValidation struct {
	PlainToken string `validate:"required"`
}

type MeetingStarted struct {
	MeetingID string `validate:"required"`
	UUID      string
	HostID    string
	HostEmail string
	Topic     string
	Timezone  string
	StartTime *time.Time
}

type MeetingEnded struct {
	MeetingID string `validate:"required"`
	EndTime   *time.Time
	Duration  int
}

// Participant identifies an attendee. Guests arrive without an id, so ID
// falls back to user_id.
type Participant struct {
	ID     string `validate:"required"`
	UserID string
	Name   string
	Email  string
}

type ParticipantJoined struct {
	MeetingID   string `validate:"required"`
	Participant Participant
	JoinTime    *time.Time
}

type ParticipantLeft struct {
	MeetingID   string `validate:"required"`
	Participant Participant
	LeaveTime   *time.Time
	Duration    int
}

type Unrecognized struct {
	Type string
}

func (URLValidation) EventType() string     { return EventURLValidation }
func (MeetingStarted) EventType() string    { return EventMeetingStarted }
func (MeetingEnded) EventType() string      { return EventMeetingEnded }
func (ParticipantJoined) EventType() string { return EventParticipantJoined }
func (ParticipantLeft) EventType() string   { return EventParticipantLeft }
func (u Unrecognized) EventType() string    { return u.Type }

// Decode turns an envelope into its typed event and validates the fields the
// handlers depend on.
func Decode(env *Envelope) (Event, error) {
	var p rawPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}

	var ev Event
	switch env.Type {
	case EventURLValidation:
		ev = URLValidation{PlainToken: p.PlainToken}
	case EventMeetingStarted:
		o := p.object()
		ev = MeetingStarted{
			MeetingID: string(o.ID),
			UUID:      o.UUID,
			HostID:    o.HostID,
			HostEmail: p.Operator,
			Topic:     o.Topic,
			Timezone:  o.Timezone,
			StartTime: parseTime(o.StartTime),
		}
	case EventMeetingEnded:
		o := p.object()
		ev = MeetingEnded{
			MeetingID: string(o.ID),
			EndTime:   parseTime(o.EndTime),
			Duration:  o.Duration,
		}
	case EventParticipantJoined:
		o := p.object()
		part := o.participant()
		ev = ParticipantJoined{
			MeetingID:   string(o.ID),
			Participant: part.toParticipant(),
			JoinTime:    parseTime(part.JoinTime),
		}
	case EventParticipantLeft:
		o := p.object()
		part := o.participant()
		ev = ParticipantLeft{
			MeetingID:   string(o.ID),
			Participant: part.toParticipant(),
			LeaveTime:   parseTime(part.LeaveTime),
			Duration:    part.Duration,
		}
	default:
		return Unrecognized{Type: env.Type}, nil
	}

	if err := validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	return ev, nil
}

func (p rawPayload) object() rawObject {
	if p.Object == nil {
		return rawObject{}
	}
	return *p.Object
}

func (o rawObject) participant() rawParticipant {
	if o.Participant == nil {
		return rawParticipant{}
	}
	return *o.Participant
}

func (p rawParticipant) toParticipant() Participant {
	id := strings.TrimSpace(string(p.ID))
	if id == "" {
		id = strings.TrimSpace(string(p.UserID))
	}
	return Participant{
		ID:     id,
		UserID: string(p.UserID),
		Name:   p.UserName,
		Email:  strings.TrimSpace(p.Email),
	}
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
