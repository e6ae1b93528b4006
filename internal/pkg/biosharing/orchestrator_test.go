package biosharing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/app/repository/repositorytest"
	"github.com/ManuelReschke/CallBio/internal/pkg/mail"
)

type mockChat struct {
	mock.Mock
}

func (m *mockChat) Configured() bool {
	return m.Called().Bool(0)
}

func (m *mockChat) SendChatMessage(ctx context.Context, meetingID, text string) error {
	return m.Called(ctx, meetingID, text).Error(0)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Name() string { return "mock" }

func (m *mockMailer) Send(ctx context.Context, msg mail.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type blockingChannel struct{}

func (blockingChannel) Name() string { return "slow" }

func (blockingChannel) Deliver(ctx context.Context, _ Notice) Attempt {
	<-ctx.Done()
	time.Sleep(10 * time.Millisecond)
	return Attempt{Channel: "slow", Result: Delivered}
}

// storeBreakingChannel delivers, then makes every later store write fail.
type storeBreakingChannel struct {
	store *repositorytest.Store
}

func (storeBreakingChannel) Name() string { return "breaking" }

func (c storeBreakingChannel) Deliver(_ context.Context, _ Notice) Attempt {
	c.store.Err = errors.New("connection reset")
	return Attempt{Channel: "breaking", Result: Delivered}
}

type fixture struct {
	store       *repositorytest.Store
	meeting     models.Meeting
	participant models.MeetingParticipant
}

func newFixture(t *testing.T, autoShare bool, hostEmail string) *fixture {
	t.Helper()
	store := repositorytest.NewStore()
	repos := store.Repositories()
	ctx := context.Background()

	start := time.Now().UTC()
	m := &models.Meeting{ExternalID: "123", Topic: "Design review", HostEmail: hostEmail, AutoBioSharing: autoShare, StartTime: &start}
	require.NoError(t, repos.Meeting.UpsertStarted(ctx, m))

	url := "https://call-bio.com/bio/7"
	p := &models.MeetingParticipant{MeetingID: m.ID, ExternalParticipantID: "p1", Email: "ada@example.com", Name: "Ada", HasBio: true, BioURL: &url, JoinTime: &start}
	require.NoError(t, repos.Participant.Upsert(ctx, p))

	return &fixture{store: store, meeting: *m, participant: *p}
}

func (f *fixture) orchestrator(channels ...Channel) *Orchestrator {
	repos := f.store.Repositories()
	return NewOrchestrator(repos.Meeting, repos.Participant, channels, WithChannelTimeout(200*time.Millisecond))
}

func (f *fixture) request() Request {
	return Request{
		MeetingExternalID: f.meeting.ExternalID,
		ParticipantID:     f.participant.ID,
		Email:             f.participant.Email,
		Name:              f.participant.Name,
		BioURL:            *f.participant.BioURL,
	}
}

func (f *fixture) shared(t *testing.T) bool {
	t.Helper()
	p, err := f.store.Repositories().Participant.GetByID(context.Background(), f.participant.ID)
	require.NoError(t, err)
	return p.BioShared
}

func TestShareViaChat(t *testing.T) {
	f := newFixture(t, true, "host@example.com")
	chat := &mockChat{}
	chat.On("Configured").Return(true)
	chat.On("SendChatMessage", mock.Anything, "123", "👋 Ada has joined! Check out their bio: https://call-bio.com/bio/7 🔗").Return(nil)
	mailer := &mockMailer{}

	out := f.orchestrator(NewChatChannel(chat), NewEmailChannel(mailer)).Share(context.Background(), f.request())

	assert.True(t, out.Success)
	assert.Equal(t, StatusShared, out.Status)
	assert.Equal(t, ChannelChat, out.Method)
	assert.True(t, f.shared(t))
	chat.AssertExpectations(t)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestShareFallsBackToEmailWhenChatUnavailable(t *testing.T) {
	f := newFixture(t, true, "host@example.com")
	chat := &mockChat{}
	chat.On("Configured").Return(false)
	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(msg mail.Message) bool {
		return msg.To == "host@example.com" && msg.Subject == "New Participant Bio Available - Design review"
	})).Return(nil)

	out := f.orchestrator(NewChatChannel(chat), NewEmailChannel(mailer)).Share(context.Background(), f.request())

	assert.Equal(t, StatusShared, out.Status)
	assert.Equal(t, ChannelEmail, out.Method)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, Unavailable, out.Attempts[0].Result)
	assert.True(t, f.shared(t))
	mailer.AssertExpectations(t)
}

func TestShareFallsBackToEmailWhenChatFails(t *testing.T) {
	f := newFixture(t, true, "host@example.com")
	chat := &mockChat{}
	chat.On("Configured").Return(true)
	chat.On("SendChatMessage", mock.Anything, "123", mock.Anything).Return(errors.New("status=404"))
	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

	out := f.orchestrator(NewChatChannel(chat), NewEmailChannel(mailer)).Share(context.Background(), f.request())

	assert.Equal(t, StatusShared, out.Status)
	assert.Equal(t, ChannelEmail, out.Method)
	assert.Equal(t, Failed, out.Attempts[0].Result)
}

func TestShareFailsWithoutHostEmail(t *testing.T) {
	f := newFixture(t, true, "")
	chat := &mockChat{}
	chat.On("Configured").Return(false)

	out := f.orchestrator(NewChatChannel(chat), NewEmailChannel(&mockMailer{})).Share(context.Background(), f.request())

	assert.False(t, out.Success)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, ReasonSharingFailed, out.Reason)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, ReasonHostEmailMissing, out.Attempts[1].Reason)
	assert.Contains(t, out.Error, ReasonHostEmailMissing)
	assert.False(t, f.shared(t))
}

func TestShareSkippedWhenDisabled(t *testing.T) {
	f := newFixture(t, false, "host@example.com")
	chat := &mockChat{}

	out := f.orchestrator(NewChatChannel(chat)).Share(context.Background(), f.request())

	assert.Equal(t, StatusNotAttempted, out.Status)
	assert.Equal(t, ReasonAutoSharingDisabled, out.Reason)
	chat.AssertNotCalled(t, "SendChatMessage", mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, f.shared(t))
}

func TestShareSkippedForUnknownMeeting(t *testing.T) {
	f := newFixture(t, true, "host@example.com")
	req := f.request()
	req.MeetingExternalID = "999"

	out := f.orchestrator().Share(context.Background(), req)
	assert.Equal(t, StatusNotAttempted, out.Status)
	assert.Equal(t, ReasonAutoSharingDisabled, out.Reason)
}

func TestShareSkippedWhenAlreadyShared(t *testing.T) {
	f := newFixture(t, true, "host@example.com")
	_, err := f.store.Repositories().Participant.MarkBioShared(context.Background(), f.participant.ID)
	require.NoError(t, err)
	chat := &mockChat{}

	out := f.orchestrator(NewChatChannel(chat)).Share(context.Background(), f.request())

	assert.Equal(t, StatusNotAttempted, out.Status)
	assert.Equal(t, ReasonAlreadyShared, out.Reason)
	chat.AssertNotCalled(t, "Configured")
}

func TestShareTimesOutSlowChannel(t *testing.T) {
	f := newFixture(t, true, "host@example.com")
	mailer := &mockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

	out := f.orchestrator(blockingChannel{}, NewEmailChannel(mailer)).Share(context.Background(), f.request())

	require.Len(t, out.Attempts, 2)
	assert.Equal(t, Failed, out.Attempts[0].Result)
	assert.Equal(t, "timeout", out.Attempts[0].Reason)
	assert.Equal(t, StatusShared, out.Status)
	assert.Equal(t, ChannelEmail, out.Method)
}

func TestShareReportsFailureWhenMarkFails(t *testing.T) {
	f := newFixture(t, true, "host@example.com")

	out := f.orchestrator(storeBreakingChannel{store: f.store}).Share(context.Background(), f.request())

	assert.False(t, out.Success)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, ReasonServiceError, out.Reason)
	assert.Equal(t, "breaking", out.Method)
	assert.Contains(t, out.Error, "connection reset")

	f.store.Err = nil
	assert.False(t, f.shared(t))
}

func TestBuildMessage(t *testing.T) {
	assert.Equal(t, "👋 Grace has joined! Check out their bio: https://x/bio/1 🔗", BuildMessage("Grace", "https://x/bio/1"))
}
