// Package repositorytest provides in-memory repositories for service and
// controller tests. They follow the same conflict and conditional update
// rules as the GORM implementations.
package repositorytest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/app/repository"
)

// Store backs all in-memory repositories with one lock.
type Store struct {
	mu           sync.Mutex
	nextID       uint
	users        map[uint]*models.User
	settings     map[uint]*models.UserSettings
	bios         map[uint]*models.Bio
	meetings     map[uint]*models.Meeting
	participants map[uint]*models.MeetingParticipant
	events       map[uint]*models.WebhookEvent

	// Err, when set, is returned by every write.
	Err error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:        map[uint]*models.User{},
		settings:     map[uint]*models.UserSettings{},
		bios:         map[uint]*models.Bio{},
		meetings:     map[uint]*models.Meeting{},
		participants: map[uint]*models.MeetingParticipant{},
		events:       map[uint]*models.WebhookEvent{},
	}
}

// Repositories wires every in-memory repository to the store.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:         &UserRepository{s: s},
		Bio:          &BioRepository{s: s},
		Meeting:      &MeetingRepository{s: s},
		Participant:  &ParticipantRepository{s: s},
		WebhookEvent: &WebhookEventRepository{s: s},
	}
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

// AddUser stores a user, with a bio when bio is not nil.
func (s *Store) AddUser(user models.User, bio *models.Bio) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = s.id()
	s.users[user.ID] = &user
	if bio != nil {
		b := *bio
		b.ID = s.id()
		b.UserID = user.ID
		s.bios[b.UserID] = &b
	}
	return &user
}

// AddUserSettings stores settings for an existing user.
func (s *Store) AddUserSettings(us models.UserSettings) *models.UserSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	us.ID = s.id()
	s.settings[us.ID] = &us
	return &us
}

// Meeting returns a copy of the stored meeting.
func (s *Store) Meeting(externalID string) (models.Meeting, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.meetings {
		if m.ExternalID == externalID {
			return *m, true
		}
	}
	return models.Meeting{}, false
}

// MeetingCount returns the number of stored meetings.
func (s *Store) MeetingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.meetings)
}

// Participants returns copies of a meeting's participants.
func (s *Store) Participants(meetingID uint) []models.MeetingParticipant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participantsOf(meetingID)
}

// Events returns copies of all stored webhook events in insertion order.
func (s *Store) Events() []models.WebhookEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.WebhookEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) participantsOf(meetingID uint) []models.MeetingParticipant {
	var out []models.MeetingParticipant
	for _, p := range s.participants {
		if p.MeetingID == meetingID {
			out = append(out, *p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].JoinTime, out[j].JoinTime
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return out[i].ID < out[j].ID
		default:
			return a.Before(*b)
		}
	})
	return out
}

type UserRepository struct{ s *Store }

func (r *UserRepository) GetByID(_ context.Context, id uint) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *UserRepository) GetByAPIKeyHash(_ context.Context, hash string) (*models.User, *models.UserSettings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	hash = strings.TrimSpace(hash)
	for _, us := range r.s.settings {
		if hash != "" && us.APIKeyHash == hash && us.APIKeyRevokedAt == nil {
			u, ok := r.s.users[us.UserID]
			if !ok {
				return nil, nil, gorm.ErrRecordNotFound
			}
			ucp, scp := *u, *us
			return &ucp, &scp, nil
		}
	}
	return nil, nil, gorm.ErrRecordNotFound
}

func (r *UserRepository) TouchAPIKeyUsage(_ context.Context, settingsID uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if us, ok := r.s.settings[settingsID]; ok {
		us.APIKeyLastUsedAt = &at
	}
	return nil
}

type BioRepository struct{ s *Store }

func (r *BioRepository) owners(match func(string) bool) []repository.BioOwner {
	var out []repository.BioOwner
	for _, u := range r.s.users {
		if !match(u.Email) {
			continue
		}
		if b, ok := r.s.bios[u.ID]; ok && b.Shareable() {
			out = append(out, repository.BioOwner{UserID: u.ID, Email: u.Email})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *BioRepository) FindShareableByEmail(_ context.Context, email string) (*repository.BioOwner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	owners := r.owners(func(e string) bool { return email != "" && e == email })
	if len(owners) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &owners[0], nil
}

func (r *BioRepository) FindShareableByEmails(_ context.Context, emails []string) ([]repository.BioOwner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	if len(emails) == 0 {
		return nil, errors.New("no emails given")
	}
	wanted := map[string]bool{}
	for _, e := range emails {
		wanted[e] = true
	}
	return r.owners(func(e string) bool { return wanted[strings.ToLower(e)] }), nil
}

type MeetingRepository struct{ s *Store }

func (r *MeetingRepository) find(externalID string) *models.Meeting {
	for _, m := range r.s.meetings {
		if m.ExternalID == externalID {
			return m
		}
	}
	return nil
}

func (r *MeetingRepository) UpsertStarted(_ context.Context, meeting *models.Meeting) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	now := time.Now().UTC()
	if existing := r.find(meeting.ExternalID); existing != nil {
		existing.StartTime = meeting.StartTime
		existing.UpdatedAt = now
		*meeting = *existing
		return nil
	}
	m := *meeting
	m.ID = r.s.id()
	m.CreatedAt = now
	m.UpdatedAt = now
	r.s.meetings[m.ID] = &m
	*meeting = m
	return nil
}

func (r *MeetingRepository) GetByExternalID(_ context.Context, externalID string) (*models.Meeting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m := r.find(externalID)
	if m == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *MeetingRepository) MarkEnded(_ context.Context, externalID string, endTime *time.Time, duration int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return 0, r.s.Err
	}
	m := r.find(externalID)
	if m == nil {
		return 0, nil
	}
	m.EndTime = endTime
	m.Duration = duration
	m.UpdatedAt = time.Now().UTC()
	return 1, nil
}

func (r *MeetingRepository) RecountParticipants(_ context.Context, meetingID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	m, ok := r.s.meetings[meetingID]
	if !ok {
		return nil
	}
	distinct := map[string]bool{}
	for _, p := range r.s.participants {
		if p.MeetingID == meetingID {
			distinct[p.ExternalParticipantID] = true
		}
	}
	m.ParticipantCount = len(distinct)
	return nil
}

func (r *MeetingRepository) SetAutoBioSharing(_ context.Context, externalID string, enabled bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return 0, r.s.Err
	}
	m := r.find(externalID)
	if m == nil {
		return 0, nil
	}
	m.AutoBioSharing = enabled
	return 1, nil
}

func (r *MeetingRepository) List(_ context.Context, filter models.MeetingFilter) ([]models.Meeting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Meeting
	for _, m := range r.s.meetings {
		if filter.HostEmail != "" && m.HostEmail != filter.HostEmail {
			continue
		}
		switch filter.Status {
		case models.MeetingStatusActive:
			if m.StartTime == nil || m.EndTime != nil {
				continue
			}
		case models.MeetingStatusCompleted:
			if m.EndTime == nil {
				continue
			}
		}
		out = append(out, *m)
	}
	sortByStartDesc(out)
	if limit := repository.ClampMeetingLimit(filter.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MeetingRepository) ListCreatedSince(_ context.Context, since time.Time, limit int) ([]models.Meeting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Meeting
	for _, m := range r.s.meetings {
		if m.CreatedAt.After(since) {
			out = append(out, *m)
		}
	}
	sortByStartDesc(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortByStartDesc(meetings []models.Meeting) {
	sort.SliceStable(meetings, func(i, j int) bool {
		a, b := meetings[i].StartTime, meetings[j].StartTime
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

type ParticipantRepository struct{ s *Store }

func (r *ParticipantRepository) Upsert(_ context.Context, participant *models.MeetingParticipant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	now := time.Now().UTC()
	for _, p := range r.s.participants {
		if p.MeetingID == participant.MeetingID && p.ExternalParticipantID == participant.ExternalParticipantID {
			p.JoinTime = participant.JoinTime
			p.Email = participant.Email
			p.Name = participant.Name
			p.HasBio = participant.HasBio
			p.BioURL = participant.BioURL
			p.UpdatedAt = now
			*participant = *p
			return nil
		}
	}
	p := *participant
	p.ID = r.s.id()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.s.participants[p.ID] = &p
	*participant = p
	return nil
}

func (r *ParticipantRepository) GetByID(_ context.Context, id uint) (*models.MeetingParticipant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *ParticipantRepository) MarkLeft(_ context.Context, meetingID uint, externalParticipantID string, leaveTime *time.Time, duration int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return 0, r.s.Err
	}
	for _, p := range r.s.participants {
		if p.MeetingID == meetingID && p.ExternalParticipantID == externalParticipantID {
			p.LeaveTime = leaveTime
			p.Duration = duration
			return 1, nil
		}
	}
	return 0, nil
}

func (r *ParticipantRepository) MarkBioShared(_ context.Context, id uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	p, ok := r.s.participants[id]
	if !ok || p.BioShared {
		return false, nil
	}
	p.BioShared = true
	return true, nil
}

func (r *ParticipantRepository) ListByMeeting(_ context.Context, meetingID uint) ([]models.MeetingParticipant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.participantsOf(meetingID), nil
}

type WebhookEventRepository struct{ s *Store }

func (r *WebhookEventRepository) Create(_ context.Context, event *models.WebhookEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	e := *event
	e.ID = r.s.id()
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	r.s.events[e.ID] = &e
	*event = e
	return nil
}

func (r *WebhookEventRepository) Claim(_ context.Context, id uint, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	for _, e := range r.s.events {
		if e.ClaimKey != nil && *e.ClaimKey == key {
			return gorm.ErrDuplicatedKey
		}
	}
	e, ok := r.s.events[id]
	if !ok || e.ClaimKey != nil {
		return gorm.ErrRecordNotFound
	}
	k := key
	e.ClaimKey = &k
	return nil
}

func (r *WebhookEventRepository) MarkProcessed(_ context.Context, id uint, note *string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	e, ok := r.s.events[id]
	if !ok || e.Processed {
		return nil
	}
	e.Processed = true
	e.ProcessedAt = &at
	if note != nil {
		n := *note
		e.ErrorMessage = &n
	}
	return nil
}

func (r *WebhookEventRepository) MarkFailed(_ context.Context, id uint, errText string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	e, ok := r.s.events[id]
	if !ok || e.Processed {
		return nil
	}
	e.ErrorMessage = &errText
	e.ClaimKey = nil
	return nil
}

func (r *WebhookEventRepository) GetByID(_ context.Context, id uint) (*models.WebhookEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *WebhookEventRepository) Stats(_ context.Context, since time.Time) ([]models.WebhookEventStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byType := map[string]*models.WebhookEventStats{}
	for _, e := range r.s.events {
		if !e.ReceivedAt.After(since) {
			continue
		}
		st, ok := byType[e.EventType]
		if !ok {
			st = &models.WebhookEventStats{EventType: e.EventType}
			byType[e.EventType] = st
		}
		st.Total++
		if e.Processed {
			st.Processed++
		}
		if e.ErrorMessage != nil {
			if *e.ErrorMessage == models.DuplicateDeliveryMessage {
				st.Duplicates++
			} else {
				st.Errors++
			}
		}
	}
	out := make([]models.WebhookEventStats, 0, len(byType))
	for _, st := range byType {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total == out[j].Total {
			return out[i].EventType < out[j].EventType
		}
		return out[i].Total > out[j].Total
	})
	return out, nil
}
