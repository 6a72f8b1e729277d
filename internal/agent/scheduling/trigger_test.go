package scheduling

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type fakeBooking struct {
	calls []model.MeetingRequest
	err   error
}

func (f *fakeBooking) CreateEvent(_ context.Context, req model.MeetingRequest) (model.BookingResult, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return model.BookingResult{}, f.err
	}
	return model.BookingResult{EventID: "evt-1", MeetingLink: "https://meet.example/abc"}, nil
}

type fakeAppointments struct {
	saved []model.Appointment
}

func (f *fakeAppointments) SaveAppointment(_ context.Context, a *model.Appointment) error {
	f.saved = append(f.saved, *a)
	return nil
}

func (f *fakeAppointments) ListAppointments(_ context.Context, conversationID string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.saved {
		if a.ConversationID == conversationID {
			out = append(out, a)
		}
	}
	return out, nil
}

func event(attempt int) model.MeetingRequested {
	return model.MeetingRequested{
		LeadID:         "lead-1",
		ConversationID: "conv-1",
		CustomerID:     "cust-1",
		CustomerName:   "Dana",
		CustomerEmail:  "dana@example.com",
		Attempt:        attempt,
		Score:          65,
		Profile:        model.QualificationProfile{PainPoints: model.Set{"churn", "manual reporting"}},
	}
}

func newTrigger(b model.CalendarBooking, a model.AppointmentRepository, policy Policy) *Trigger {
	return NewTrigger(b, a, model.CalendarConfig{FallbackEmail: "customer@example.com"}, policy, func() time.Time { return fixedNow })
}

func TestRequestShape(t *testing.T) {
	req := newTrigger(nil, nil, PolicyEveryRequest).Request(event(1))

	if req.Subject != "Sales Consultation - Dana" {
		t.Fatalf("expected subject=%q, got %q", "Sales Consultation - Dana", req.Subject)
	}
	if !strings.HasPrefix(req.Description, "Sales consultation for lead with score 65. Pain points: churn, manual reporting") {
		t.Fatalf("unexpected description %q", req.Description)
	}
	if !req.Window.Start.Equal(fixedNow.Add(24*time.Hour)) || req.Window.End.Sub(req.Window.Start) != time.Hour {
		t.Fatalf("unexpected window %+v", req.Window)
	}
	if req.Window.TimeZone != "UTC" {
		t.Fatalf("expected UTC, got %q", req.Window.TimeZone)
	}
}

func TestRequestAnchorsWindowToRequestTime(t *testing.T) {
	evt := event(2)
	evt.RequestedAt = fixedNow.Add(-3 * time.Hour)
	req := newTrigger(nil, nil, PolicyEveryRequest).Request(evt)

	if want := evt.RequestedAt.Add(24 * time.Hour); !req.Window.Start.Equal(want) {
		t.Fatalf("expected start=%s, got %s", want, req.Window.Start)
	}
	if req.Key != "lead-1:2" {
		t.Fatalf("expected key=%q, got %q", "lead-1:2", req.Key)
	}
}

func TestRequestDefaultsCustomer(t *testing.T) {
	evt := event(1)
	evt.CustomerName, evt.CustomerEmail = "", ""
	req := newTrigger(nil, nil, PolicyEveryRequest).Request(evt)
	if req.Subject != "Sales Consultation - Customer" || req.Attendee.Email != "customer@example.com" {
		t.Fatalf("unexpected defaults %+v", req)
	}
}

func TestHandleBooksEveryRequest(t *testing.T) {
	b := &fakeBooking{}
	a := &fakeAppointments{}
	tr := newTrigger(b, a, PolicyEveryRequest)
	ctx := context.Background()

	for _, attempt := range []int{1, 2, 2} {
		if err := tr.Handle(ctx, event(attempt)); err != nil {
			t.Fatalf("handle attempt %d: %v", attempt, err)
		}
	}

	if len(b.calls) != 2 {
		t.Fatalf("expected two bookings (redelivered attempt skipped), got %d", len(b.calls))
	}
	if len(a.saved) != 2 || a.saved[0].ExternalEventID != "evt-1" || a.saved[0].Status != model.AppointmentConfirmed {
		t.Fatalf("unexpected appointments %+v", a.saved)
	}
}

func TestHandleFirstOnly(t *testing.T) {
	b := &fakeBooking{}
	tr := newTrigger(b, &fakeAppointments{}, PolicyFirstOnly)
	for attempt := 1; attempt <= 3; attempt++ {
		if err := tr.Handle(context.Background(), event(attempt)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if len(b.calls) != 1 {
		t.Fatalf("expected one booking, got %d", len(b.calls))
	}
}

func TestHandleSwallowsBookingFailure(t *testing.T) {
	b := &fakeBooking{err: errors.New("calendar 500")}
	a := &fakeAppointments{}
	if err := newTrigger(b, a, PolicyEveryRequest).Handle(context.Background(), event(1)); err != nil {
		t.Fatalf("expected booking failure to be swallowed, got %v", err)
	}
	if len(a.saved) != 0 {
		t.Fatalf("expected no appointment, got %+v", a.saved)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyEveryRequest {
		t.Fatalf("expected default policy, got %q %v", p, err)
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
