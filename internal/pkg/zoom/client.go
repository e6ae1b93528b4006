package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/CallBio/internal/pkg/env"
)

const (
	defaultZoomTokenURL   = "https://zoom.us/oauth/token"
	defaultZoomAPIBaseURL = "https://api.zoom.us/v2"

	// tokens are renewed this long before Zoom expires them
	tokenRefreshMargin = 5 * time.Minute
)

// ErrNotConfigured is returned by API calls when the account credentials are missing.
var ErrNotConfigured = errors.New("zoom API credentials are not configured")

// Client talks to the Zoom REST API with a server-to-server OAuth app.
// It caches the account token until shortly before it expires.
type Client struct {
	AccountID    string
	ClientID     string
	ClientSecret string

	TokenURL   string
	APIBaseURL string

	HTTPClient *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	now         func() time.Time
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// MeetingDetails is the subset of GET /meetings/{id} CallBio exposes.
type MeetingDetails struct {
	ID        FlexString `json:"id"`
	Topic     string     `json:"topic"`
	Type      int        `json:"type"`
	Status    string     `json:"status"`
	StartTime string     `json:"start_time"`
	Duration  int        `json:"duration"`
	Timezone  string     `json:"timezone"`
	HostID    string     `json:"host_id"`
	HostEmail string     `json:"host_email"`
}

// ReportParticipant is one row of the past meeting participant report.
type ReportParticipant struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	Name               string `json:"name"`
	UserEmail          string `json:"user_email"`
	JoinTime           string `json:"join_time"`
	LeaveTime          string `json:"leave_time"`
	Duration           int    `json:"duration"`
	AttentivenessScore string `json:"attentiveness_score"`
}

type participantsReport struct {
	Participants  []ReportParticipant `json:"participants"`
	NextPageToken string              `json:"next_page_token"`
}

func NewClientFromEnv() *Client {
	return &Client{
		AccountID:    strings.TrimSpace(env.GetEnv("ZOOM_ACCOUNT_ID", "")),
		ClientID:     strings.TrimSpace(env.GetEnv("ZOOM_CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("ZOOM_CLIENT_SECRET", "")),
		TokenURL:     strings.TrimSpace(env.GetEnv("ZOOM_TOKEN_URL", defaultZoomTokenURL)),
		APIBaseURL:   strings.TrimSpace(env.GetEnv("ZOOM_API_BASE_URL", defaultZoomAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether all account credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.AccountID != "" && c.ClientID != "" && c.ClientSecret != ""
}

func (c *Client) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// Token returns a cached access token or fetches a new one.
func (c *Client) Token(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && c.clock().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", c.AccountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("zoom token request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("zoom token request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out TokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", errors.New("zoom token request returned empty access_token")
	}

	c.accessToken = out.AccessToken
	c.expiresAt = c.clock().Add(time.Duration(out.ExpiresIn)*time.Second - tokenRefreshMargin)
	log.Debug().Time("expires_at", c.expiresAt).Msg("zoom access token refreshed")
	return c.accessToken, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.APIBaseURL, "/")+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("zoom %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("zoom %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(body))
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// GetMeetingDetails fetches a scheduled or live meeting.
func (c *Client) GetMeetingDetails(ctx context.Context, meetingID string) (*MeetingDetails, error) {
	var out MeetingDetails
	if err := c.do(ctx, http.MethodGet, "/meetings/"+url.PathEscape(meetingID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMeetingParticipants walks every page of the past meeting participant report.
func (c *Client) GetMeetingParticipants(ctx context.Context, meetingID string) ([]ReportParticipant, error) {
	var all []ReportParticipant
	nextPage := ""
	for {
		q := url.Values{}
		q.Set("page_size", "300")
		if nextPage != "" {
			q.Set("next_page_token", nextPage)
		}
		var page participantsReport
		path := "/report/meetings/" + url.PathEscape(meetingID) + "/participants?" + q.Encode()
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Participants...)
		if page.NextPageToken == "" {
			return all, nil
		}
		nextPage = page.NextPageToken
	}
}

// SendChatMessage posts text into the in-meeting chat of a live meeting.
func (c *Client) SendChatMessage(ctx context.Context, meetingID, text string) error {
	payload := map[string]string{"message": text}
	return c.do(ctx, http.MethodPost, "/live_meetings/"+url.PathEscape(meetingID)+"/chat/messages", payload, nil)
}
