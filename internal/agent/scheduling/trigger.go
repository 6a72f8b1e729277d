// Package scheduling turns MeetingRequested events into calendar bookings.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	errx "github.com/Chative-lead-agent/server/internal/core/error"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

// Policy decides whether a repeated request books another meeting.
type Policy string

const (
	// PolicyEveryRequest books on every request, one booking per (lead, attempt).
	PolicyEveryRequest Policy = "every_request"
	// PolicyFirstOnly books once per lead and ignores later requests.
	PolicyFirstOnly Policy = "first_only"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyEveryRequest:
		return PolicyEveryRequest, nil
	case PolicyFirstOnly:
		return PolicyFirstOnly, nil
	default:
		return "", fmt.Errorf("unknown scheduling policy %q", s)
	}
}

const defaultCustomerName = "Customer"

type Trigger struct {
	booking      model.CalendarBooking
	appointments model.AppointmentRepository
	cfg          model.CalendarConfig
	policy       Policy
	now          model.Clock
}

// NewTrigger builds a trigger. A nil booking disables calendar calls.
func NewTrigger(booking model.CalendarBooking, appointments model.AppointmentRepository, cfg model.CalendarConfig, policy Policy, now model.Clock) *Trigger {
	if now == nil {
		now = time.Now
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = 24 * time.Hour
	}
	if cfg.Duration <= 0 {
		cfg.Duration = time.Hour
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = "UTC"
	}
	return &Trigger{booking: booking, appointments: appointments, cfg: cfg, policy: policy, now: now}
}

// Request builds the calendar request for evt.
func (t *Trigger) Request(evt model.MeetingRequested) model.MeetingRequest {
	name := strings.TrimSpace(evt.CustomerName)
	if name == "" {
		name = defaultCustomerName
	}
	email := strings.TrimSpace(evt.CustomerEmail)
	if email == "" {
		email = t.cfg.FallbackEmail
	}

	requested := evt.RequestedAt
	if requested.IsZero() {
		requested = t.now()
	}
	start := requested.UTC().Add(t.cfg.LeadTime)
	return model.MeetingRequest{
		Key:         evt.Key(),
		LeadID:      evt.LeadID,
		CustomerID:  evt.CustomerID,
		Subject:     "Sales Consultation - " + name,
		Description: Describe(evt.Score, evt.Profile),
		Attendee:    model.Attendee{Name: name, Email: email},
		Window: model.TimeWindow{
			Start:    start,
			End:      start.Add(t.cfg.Duration),
			TimeZone: t.cfg.TimeZone,
		},
	}
}

// Describe summarises the qualification profile for the meeting body.
func Describe(score int, p model.QualificationProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sales consultation for lead with score %d. Pain points: %s", score, strings.Join(p.PainPoints, ", "))
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, "\nInterests: %s", strings.Join(p.Interests, ", "))
	}
	if p.Budget != "" {
		fmt.Fprintf(&b, "\nBudget: %s", p.Budget)
	}
	if p.Timeline != "" {
		fmt.Fprintf(&b, "\nTimeline: %s", p.Timeline)
	}
	if p.DecisionMaker.Known() {
		fmt.Fprintf(&b, "\nDecision maker: %s", p.DecisionMaker)
	}
	return b.String()
}

// Handle books the meeting for evt. Booking failures are logged and swallowed;
// only failures that happen before anything was booked are returned.
func (t *Trigger) Handle(ctx context.Context, evt model.MeetingRequested) error {
	ctx = logx.WithConversation(ctx, evt.ConversationID)
	log := logx.Ctx(ctx)

	if t.booking == nil {
		log.Info().Str("lead_id", evt.LeadID).Int("attempt", evt.Attempt).Msg("calendar disabled; meeting request ignored")
		return nil
	}

	skip, err := t.alreadyBooked(ctx, evt)
	if err != nil {
		return fmt.Errorf("check existing appointments: %w", err)
	}
	if skip {
		log.Info().Str("lead_id", evt.LeadID).Int("attempt", evt.Attempt).Str("policy", string(t.policy)).Msg("meeting already booked; skipping")
		return nil
	}

	req := t.Request(evt)
	started := time.Now()
	res, err := t.booking.CreateEvent(ctx, req)
	if err != nil {
		log.Error().Err(errors.Join(errx.ErrBookingFailed, err)).
			Str("component", "scheduling").
			Str("lead_id", evt.LeadID).
			Int("attempt", evt.Attempt).
			Dur("latency", time.Since(started)).
			Msg("calendar booking failed")
		return nil
	}

	appt := &model.Appointment{
		ID:              uuid.NewString(),
		LeadID:          evt.LeadID,
		ConversationID:  evt.ConversationID,
		CustomerID:      evt.CustomerID,
		ExternalEventID: res.EventID,
		MeetingLink:     res.MeetingLink,
		Title:           req.Subject,
		Description:     req.Description,
		Start:           req.Window.Start,
		End:             req.Window.End,
		TimeZone:        req.Window.TimeZone,
		Status:          model.AppointmentConfirmed,
		Attempt:         evt.Attempt,
		CreatedAt:       t.now().UTC(),
	}
	if t.appointments != nil {
		if err := t.appointments.SaveAppointment(ctx, appt); err != nil {
			log.Error().Err(err).Str("event_id", res.EventID).Msg("meeting booked but appointment not recorded")
			return nil
		}
	}

	log.Info().
		Str("component", "scheduling").
		Str("lead_id", evt.LeadID).
		Int("attempt", evt.Attempt).
		Str("event_id", res.EventID).
		Dur("latency", time.Since(started)).
		Msg("meeting booked")
	return nil
}

func (t *Trigger) alreadyBooked(ctx context.Context, evt model.MeetingRequested) (bool, error) {
	if t.appointments == nil {
		return false, nil
	}
	appts, err := t.appointments.ListAppointments(ctx, evt.ConversationID)
	if err != nil {
		return false, err
	}
	for _, a := range appts {
		if a.LeadID != evt.LeadID {
			continue
		}
		if t.policy == PolicyFirstOnly || a.Attempt == evt.Attempt {
			return true, nil
		}
	}
	return false, nil
}

// DirectPublisher runs the trigger in-process instead of through a queue.
type DirectPublisher struct {
	Trigger *Trigger
}

func (p DirectPublisher) PublishMeetingRequested(ctx context.Context, evt model.MeetingRequested) error {
	return p.Trigger.Handle(ctx, evt)
}

var _ model.MeetingPublisher = DirectPublisher{}
