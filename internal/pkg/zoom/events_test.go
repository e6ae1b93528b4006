package zoom

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"event":"meeting.ended","event_ts":1760000000123,"payload":{"object":{"id":85746065}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventMeetingEnded, env.Type)
	assert.Equal(t, int64(1760000000123), env.EventTS)
	assert.Equal(t, "85746065", env.MeetingID)
	assert.Empty(t, env.ParticipantID)

	env, err = ParseEnvelope([]byte(`{"event":"meeting.participant_left","payload":{"object":{"id":"1","participant":{"user_id":"u9"}}}}`))
	require.NoError(t, err)
	assert.Equal(t, "u9", env.ParticipantID)

	_, err = ParseEnvelope([]byte(`{not json`))
	assert.True(t, errors.Is(err, ErrInvalidEnvelope))

	_, err = ParseEnvelope([]byte(`{"payload":{}}`))
	assert.True(t, errors.Is(err, ErrInvalidEnvelope))
}

func TestDecodeVariants(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, ev Event)
	}{
		{
			name: "url validation",
			body: `{"event":"endpoint.url_validation","payload":{"plainToken":"abc"}}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, URLValidation{PlainToken: "abc"}, ev)
			},
		},
		{
			name: "meeting started",
			body: `{"event":"meeting.started","payload":{"operator":"host@example.com","object":{"id":"123","uuid":"u==","host_id":"h1","topic":"Sync","timezone":"UTC","start_time":"2026-03-01T10:00:00Z"}}}`,
			check: func(t *testing.T, ev Event) {
				started, ok := ev.(MeetingStarted)
				require.True(t, ok)
				assert.Equal(t, "123", started.MeetingID)
				assert.Equal(t, "host@example.com", started.HostEmail)
				require.NotNil(t, started.StartTime)
				assert.True(t, started.StartTime.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
			},
		},
		{
			name: "participant joined",
			body: `{"event":"meeting.participant_joined","payload":{"object":{"id":123,"participant":{"id":"p1","user_name":"Ada","email":" ada@example.com ","join_time":"2026-03-01T10:05:00Z"}}}}`,
			check: func(t *testing.T, ev Event) {
				joined, ok := ev.(ParticipantJoined)
				require.True(t, ok)
				assert.Equal(t, "123", joined.MeetingID)
				assert.Equal(t, Participant{ID: "p1", Name: "Ada", Email: "ada@example.com"}, joined.Participant)
				require.NotNil(t, joined.JoinTime)
			},
		},
		{
			name: "guest joined without id",
			body: `{"event":"meeting.participant_joined","payload":{"object":{"id":"123","participant":{"id":"","user_id":16778240,"user_name":"Guest"}}}}`,
			check: func(t *testing.T, ev Event) {
				joined, ok := ev.(ParticipantJoined)
				require.True(t, ok)
				assert.Equal(t, Participant{ID: "16778240", UserID: "16778240", Name: "Guest"}, joined.Participant)
			},
		},
		{
			name: "participant left",
			body: `{"event":"meeting.participant_left","payload":{"object":{"id":"123","participant":{"id":"p1","leave_time":"2026-03-01T10:35:00Z","duration":1800}}}}`,
			check: func(t *testing.T, ev Event) {
				left, ok := ev.(ParticipantLeft)
				require.True(t, ok)
				assert.Equal(t, 1800, left.Duration)
				require.NotNil(t, left.LeaveTime)
			},
		},
		{
			name: "unrecognized",
			body: `{"event":"recording.completed","payload":{}}`,
			check: func(t *testing.T, ev Event) {
				assert.Equal(t, Unrecognized{Type: "recording.completed"}, ev)
				assert.Equal(t, "recording.completed", ev.EventType())
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env, err := ParseEnvelope([]byte(tt.body))
			require.NoError(t, err)
			ev, err := Decode(env)
			require.NoError(t, err)
			tt.check(t, ev)
		})
	}
}

func TestDecodeRejectsJoinWithoutParticipantID(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"event":"meeting.participant_joined","payload":{"object":{"id":"123","participant":{"user_name":"Ada"}}}}`))
	require.NoError(t, err)

	_, err = Decode(env)
	assert.Error(t, err)
}
