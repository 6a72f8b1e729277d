// Package calendar books meetings with external calendar providers.
package calendar

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	"github.com/Chative-lead-agent/server/pkg/resilience"
)

const eventSource = "lead_management_system"

var eventIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// EventID maps a meeting key to a Calendar event id (base32hex, lowercase).
// The same key always yields the same id. An empty key yields "".
func EventID(key string) string {
	if key == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(eventSource + ":" + key))
	return strings.ToLower(eventIDEncoding.EncodeToString(sum[:]))
}

// GoogleCalendar creates events through the Calendar v3 REST API.
type GoogleCalendar struct {
	baseURL    string
	calendarID string
	token      string
	httpClient *http.Client
}

func NewGoogleCalendar(baseURL, calendarID, token string, timeout time.Duration) *GoogleCalendar {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &GoogleCalendar{
		baseURL:    strings.TrimRight(baseURL, "/"),
		calendarID: calendarID,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type eventAttendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

type reminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type eventRequest struct {
	ID          string          `json:"id,omitempty"`
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Start       eventTime       `json:"start"`
	End         eventTime       `json:"end"`
	Attendees   []eventAttendee `json:"attendees"`
	Reminders   struct {
		UseDefault bool               `json:"useDefault"`
		Overrides  []reminderOverride `json:"overrides"`
	} `json:"reminders"`
	ExtendedProperties struct {
		Private map[string]string `json:"private"`
	} `json:"extendedProperties"`
}

type eventResponse struct {
	ID          string `json:"id"`
	HangoutLink string `json:"hangoutLink"`
	HTMLLink    string `json:"htmlLink"`
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, req model.MeetingRequest) (model.BookingResult, error) {
	body := eventRequest{
		ID:          EventID(req.Key),
		Summary:     req.Subject,
		Description: req.Description,
		Start:       eventTime{DateTime: req.Window.Start.Format(time.RFC3339), TimeZone: req.Window.TimeZone},
		End:         eventTime{DateTime: req.Window.End.Format(time.RFC3339), TimeZone: req.Window.TimeZone},
		Attendees:   []eventAttendee{{Email: req.Attendee.Email, DisplayName: req.Attendee.Name}},
	}
	body.Reminders.Overrides = []reminderOverride{
		{Method: "email", Minutes: 24 * 60},
		{Method: "popup", Minutes: 10},
	}
	body.ExtendedProperties.Private = map[string]string{
		"leadId":     req.LeadID,
		"customerId": req.CustomerID,
		"source":     eventSource,
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return model.BookingResult{}, fmt.Errorf("marshal event: %w", err)
	}

	resp, err := g.do(ctx, http.MethodPost, g.eventsURL(), bodyBytes)
	if err != nil {
		return model.BookingResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusConflict && body.ID != "" {
		// an earlier attempt already created this event
		return g.getEvent(ctx, body.ID)
	}
	return decodeEvent(resp)
}

func (g *GoogleCalendar) eventsURL() string {
	return fmt.Sprintf("%s/calendars/%s/events", g.baseURL, url.PathEscape(g.calendarID))
}

func (g *GoogleCalendar) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create event request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	return resp, nil
}

func (g *GoogleCalendar) getEvent(ctx context.Context, eventID string) (model.BookingResult, error) {
	resp, err := g.do(ctx, http.MethodGet, g.eventsURL()+"/"+url.PathEscape(eventID), nil)
	if err != nil {
		return model.BookingResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	return decodeEvent(resp)
}

func decodeEvent(resp *http.Response) (model.BookingResult, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("google calendar returned %d: %s", resp.StatusCode, string(msg))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return model.BookingResult{}, resilience.Permanent(err)
		}
		return model.BookingResult{}, err
	}

	var out eventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.BookingResult{}, fmt.Errorf("decode event: %w", err)
	}
	link := out.HangoutLink
	if link == "" {
		link = out.HTMLLink
	}
	return model.BookingResult{EventID: out.ID, MeetingLink: link}, nil
}

var _ model.CalendarBooking = (*GoogleCalendar)(nil)
