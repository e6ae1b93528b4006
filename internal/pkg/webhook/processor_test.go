package webhook

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/app/repository/repositorytest"
	"github.com/ManuelReschke/CallBio/internal/pkg/bio"
	"github.com/ManuelReschke/CallBio/internal/pkg/biosharing"
	"github.com/ManuelReschke/CallBio/internal/pkg/meetings"
	"github.com/ManuelReschke/CallBio/internal/pkg/metrics"
	"github.com/ManuelReschke/CallBio/internal/pkg/zoom"
)

const testSecret = "whsec_test"

type stubSharer struct {
	calls int
}

func (s *stubSharer) Share(_ context.Context, req biosharing.Request) biosharing.Outcome {
	s.calls++
	return biosharing.Outcome{Success: true, Status: biosharing.StatusShared, Method: biosharing.ChannelChat, Message: "shared " + req.Name}
}

func newTestProcessor(t *testing.T) (*Processor, *repositorytest.Store, *stubSharer) {
	t.Helper()
	store := repositorytest.NewStore()
	store.AddUser(models.User{Name: "Ada", Email: "ada@example.com"}, &models.Bio{ShortBio: "Mathematician", IsPublic: true})
	repos := store.Repositories()
	sharer := &stubSharer{}
	svc := meetings.NewService(repos.Meeting, repos.Participant, bio.NewGateway(repos.Bio, "https://call-bio.com"), sharer, zerolog.Nop())
	return NewProcessor(testSecret, NewEventStore(repos.WebhookEvent), svc, zerolog.Nop()), store, sharer
}

const startedBody = `{"event":"meeting.started","event_ts":1700000000000,"payload":{"operator":"host@example.com","object":{"id":123,"uuid":"abc==","topic":"Weekly","start_time":"2026-03-01T10:00:00Z"}}}`

const joinedBody = `{"event":"meeting.participant_joined","event_ts":1700000001000,"payload":{"object":{"id":"123","participant":{"id":"p1","user_name":"Ada","email":"ada@example.com","join_time":"2026-03-01T10:01:00Z"}}}}`

func TestVerify(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	body := []byte(startedBody)
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	assert.NoError(t, p.Verify(zoom.SignPayload(testSecret, ts, body), ts, body))

	before := testutil.ToFloat64(metrics.SignatureRejections.WithLabelValues(zoom.ReasonBadSignature))
	err := p.Verify("v0=deadbeef", ts, body)
	var sigErr *zoom.SignatureError
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, zoom.ReasonBadSignature, sigErr.Reason)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SignatureRejections.WithLabelValues(zoom.ReasonBadSignature)))

	unconfigured := NewProcessor("", nil, nil, zerolog.Nop())
	err = unconfigured.Verify("v0=x", ts, body)
	require.ErrorAs(t, err, &sigErr)
	assert.Equal(t, zoom.ReasonNotConfigured, sigErr.Reason)
}

func TestProcessURLValidation(t *testing.T) {
	p, store, _ := newTestProcessor(t)

	res := p.Process(context.Background(), []byte(`{"event":"endpoint.url_validation","payload":{"plainToken":"qgg8vlvZRS6UYooatFL8Aw"}}`))

	assert.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, "qgg8vlvZRS6UYooatFL8Aw", res.Body["plainToken"])
	assert.Equal(t, zoom.EncryptURLValidationToken(testSecret, "qgg8vlvZRS6UYooatFL8Aw"), res.Body["encryptedToken"])

	events := store.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Processed)
}

func TestProcessMeetingLifecycle(t *testing.T) {
	p, store, sharer := newTestProcessor(t)
	ctx := context.Background()

	res := p.Process(ctx, []byte(startedBody))
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, "Meeting started event processed", res.Body["message"])

	res = p.Process(ctx, []byte(joinedBody))
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, true, res.Body["success"])
	assert.Equal(t, "Participant joined event processed", res.Body["message"])
	assert.Equal(t, true, res.Body["has_bio"])
	assert.Equal(t, true, res.Body["bio_shared"])
	require.NotNil(t, res.Body["bio_url"])
	assert.Equal(t, "https://call-bio.com/bio/1", *res.Body["bio_url"].(*string))
	sharing, ok := res.Body["sharing"].(*biosharing.Outcome)
	require.True(t, ok)
	assert.True(t, sharing.Success)
	assert.Equal(t, biosharing.ChannelChat, sharing.Method)
	assert.Equal(t, 1, sharer.calls)

	res = p.Process(ctx, []byte(`{"event":"meeting.participant_left","event_ts":1700000002000,"payload":{"object":{"id":"123","participant":{"id":"p1","leave_time":"2026-03-01T10:30:00Z","duration":1740}}}}`))
	assert.Equal(t, "Participant left event processed", res.Body["message"])

	res = p.Process(ctx, []byte(`{"event":"meeting.ended","event_ts":1700000003000,"payload":{"object":{"id":"123","end_time":"2026-03-01T11:00:00Z","duration":60}}}`))
	assert.Equal(t, "Meeting ended event processed", res.Body["message"])

	m, ok := store.Meeting("123")
	require.True(t, ok)
	assert.Equal(t, 60, m.Duration)
	assert.Equal(t, 1, m.ParticipantCount)
	parts := store.Participants(m.ID)
	require.Len(t, parts, 1)
	assert.Equal(t, 1740, parts[0].Duration)

	for _, e := range store.Events() {
		assert.True(t, e.Processed, e.EventType)
		assert.Nil(t, e.ErrorMessage, e.EventType)
	}
}

func TestProcessDuplicateDeliveryIsNotDispatched(t *testing.T) {
	p, store, sharer := newTestProcessor(t)
	ctx := context.Background()
	require.Equal(t, fiber.StatusOK, p.Process(ctx, []byte(startedBody)).Status)

	first := p.Process(ctx, []byte(joinedBody))
	second := p.Process(ctx, []byte(joinedBody))

	assert.Equal(t, true, first.Body["bio_shared"])
	assert.Equal(t, fiber.StatusOK, second.Status)
	assert.Equal(t, true, second.Body["duplicate"])
	assert.Equal(t, 1, sharer.calls)

	events := store.Events()
	require.Len(t, events, 3)
	dup := events[2]
	assert.True(t, dup.Processed)
	require.NotNil(t, dup.ErrorMessage)
	assert.Equal(t, models.DuplicateDeliveryMessage, *dup.ErrorMessage)

	stats, err := p.store.Stats(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	for _, st := range stats {
		if st.EventType == zoom.EventParticipantJoined {
			assert.Equal(t, int64(2), st.Total)
			assert.Equal(t, int64(1), st.Duplicates)
			assert.Equal(t, int64(0), st.Errors)
		}
	}
}

func TestProcessSimultaneousJoinsAreBothRecorded(t *testing.T) {
	p, store, _ := newTestProcessor(t)
	ctx := context.Background()
	require.Equal(t, fiber.StatusOK, p.Process(ctx, []byte(startedBody)).Status)

	admitted := []string{
		`{"event":"meeting.participant_joined","event_ts":1700000005000,"payload":{"object":{"id":"123","participant":{"id":"p1","user_name":"Ada","email":"ada@example.com"}}}}`,
		`{"event":"meeting.participant_joined","event_ts":1700000005000,"payload":{"object":{"id":"123","participant":{"id":"p2","user_name":"Bob","email":"bob@example.com"}}}}`,
	}
	for _, body := range admitted {
		res := p.Process(ctx, []byte(body))
		require.Equal(t, fiber.StatusOK, res.Status)
		assert.Nil(t, res.Body["duplicate"])
		assert.Equal(t, "Participant joined event processed", res.Body["message"])
	}

	m, ok := store.Meeting("123")
	require.True(t, ok)
	assert.Equal(t, 2, m.ParticipantCount)
	assert.Len(t, store.Participants(m.ID), 2)
}

func TestProcessGuestJoinUsesUserID(t *testing.T) {
	p, store, _ := newTestProcessor(t)
	ctx := context.Background()
	require.Equal(t, fiber.StatusOK, p.Process(ctx, []byte(startedBody)).Status)

	res := p.Process(ctx, []byte(`{"event":"meeting.participant_joined","event_ts":1700000006000,"payload":{"object":{"id":"123","participant":{"id":"","user_id":"16778240","user_name":"Guest"}}}}`))

	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, false, res.Body["has_bio"])
	m, _ := store.Meeting("123")
	parts := store.Participants(m.ID)
	require.Len(t, parts, 1)
	assert.Equal(t, "16778240", parts[0].ExternalParticipantID)
}

func TestProcessJoinForUnknownMeeting(t *testing.T) {
	p, store, _ := newTestProcessor(t)

	res := p.Process(context.Background(), []byte(joinedBody))

	assert.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, false, res.Body["success"])
	assert.Equal(t, "Meeting not found", res.Body["message"])
	assert.Equal(t, 0, store.MeetingCount())
}

func TestProcessInvalidPayloadReleasesClaim(t *testing.T) {
	p, store, _ := newTestProcessor(t)
	body := []byte(`{"event":"meeting.participant_joined","event_ts":1700000009000,"payload":{"object":{"id":"123","participant":{"user_name":"NoID"}}}}`)

	res := p.Process(context.Background(), body)
	assert.Equal(t, fiber.StatusInternalServerError, res.Status)
	assert.Equal(t, "Webhook processing failed", res.Body["error"])

	events := store.Events()
	require.Len(t, events, 1)
	assert.False(t, events[0].Processed)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Nil(t, events[0].ClaimKey)

	// A redelivery retries instead of being treated as a duplicate.
	res = p.Process(context.Background(), body)
	assert.Equal(t, fiber.StatusInternalServerError, res.Status)
	assert.Nil(t, res.Body["duplicate"])
}

func TestProcessInvalidJSON(t *testing.T) {
	p, store, _ := newTestProcessor(t)

	res := p.Process(context.Background(), []byte(`{not json`))

	assert.Equal(t, fiber.StatusBadRequest, res.Status)
	assert.NotEmpty(t, res.Body["error"])
	assert.Empty(t, store.Events())
}

func TestProcessPersistenceFailure(t *testing.T) {
	p, store, _ := newTestProcessor(t)
	store.Err = errors.New("connection refused")

	res := p.Process(context.Background(), []byte(startedBody))

	assert.Equal(t, fiber.StatusInternalServerError, res.Status)
	assert.Equal(t, false, res.Body["success"])
	assert.Equal(t, "Webhook processing failed", res.Body["error"])
	assert.Contains(t, res.Body["message"], "connection refused")
}

func TestProcessUnrecognizedEvent(t *testing.T) {
	p, store, _ := newTestProcessor(t)

	res := p.Process(context.Background(), []byte(`{"event":"recording.completed","event_ts":1,"payload":{"object":{"id":"9"}}}`))

	assert.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, "Event recording.completed received but not handled", res.Body["message"])
	events := store.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Processed)
}

func TestIdempotencyKey(t *testing.T) {
	a, err := zoom.ParseEnvelope([]byte(joinedBody))
	require.NoError(t, err)
	b, err := zoom.ParseEnvelope([]byte(joinedBody))
	require.NoError(t, err)
	assert.Equal(t, IdempotencyKey(a, []byte(joinedBody)), IdempotencyKey(b, []byte(joinedBody)))

	noTS := []byte(`{"event":"meeting.ended","payload":{"object":{"id":"1"}}}`)
	other := []byte(`{"event":"meeting.ended","payload":{"object":{"id":"1","duration":5}}}`)
	c, _ := zoom.ParseEnvelope(noTS)
	d, _ := zoom.ParseEnvelope(other)
	assert.NotEqual(t, IdempotencyKey(c, noTS), IdempotencyKey(d, other))

	p1 := []byte(`{"event":"meeting.participant_left","event_ts":5,"payload":{"object":{"id":"1","participant":{"id":"p1"}}}}`)
	p2 := []byte(`{"event":"meeting.participant_left","event_ts":5,"payload":{"object":{"id":"1","participant":{"id":"p2"}}}}`)
	e1, _ := zoom.ParseEnvelope(p1)
	e2, _ := zoom.ParseEnvelope(p2)
	assert.NotEqual(t, IdempotencyKey(e1, p1), IdempotencyKey(e2, p2))
}
