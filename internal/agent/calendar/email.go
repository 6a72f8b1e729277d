package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

const icsTimeFormat = "20060102T150405Z"

// EmailInvite books a meeting by mailing an iCalendar invitation to the customer.
type EmailInvite struct {
	cfg  model.SMTPConfig
	send func(ctx context.Context, msg *gomail.Msg) error
	now  model.Clock
}

func NewEmailInvite(cfg model.SMTPConfig) *EmailInvite {
	e := &EmailInvite{cfg: cfg, now: time.Now}
	e.send = e.dialAndSend
	return e
}

func (e *EmailInvite) CreateEvent(ctx context.Context, req model.MeetingRequest) (model.BookingResult, error) {
	// a resent invite with the same UID updates the event instead of adding one
	id := EventID(req.Key)
	if id == "" {
		id = uuid.NewString()
	}
	uid := id + "@" + eventSource
	ics := BuildICS(uid, e.cfg.FromName, e.cfg.FromEmail, req, e.now())

	msg := gomail.NewMsg()
	if err := msg.FromFormat(e.cfg.FromName, e.cfg.FromEmail); err != nil {
		return model.BookingResult{}, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.AddToFormat(req.Attendee.Name, req.Attendee.Email); err != nil {
		return model.BookingResult{}, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(req.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, req.Description)
	msg.AddAlternativeString(gomail.ContentType("text/calendar; method=REQUEST"), ics)
	if err := msg.AttachReader("invite.ics", strings.NewReader(ics)); err != nil {
		return model.BookingResult{}, fmt.Errorf("attach invite: %w", err)
	}

	if err := e.send(ctx, msg); err != nil {
		return model.BookingResult{}, err
	}
	return model.BookingResult{EventID: uid}, nil
}

func (e *EmailInvite) dialAndSend(ctx context.Context, msg *gomail.Msg) error {
	client, err := gomail.NewClient(e.cfg.Host,
		gomail.WithPort(e.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(e.cfg.Username),
		gomail.WithPassword(e.cfg.Password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// BuildICS renders a single-event REQUEST calendar. Lines use CRLF.
func BuildICS(uid, organizerName, organizerEmail string, req model.MeetingRequest, stamp time.Time) string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Chative//Lead Agent//EN",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:" + stamp.UTC().Format(icsTimeFormat),
		"DTSTART:" + req.Window.Start.UTC().Format(icsTimeFormat),
		"DTEND:" + req.Window.End.UTC().Format(icsTimeFormat),
		"SUMMARY:" + icsEscape(req.Subject),
		"DESCRIPTION:" + icsEscape(req.Description),
		fmt.Sprintf("ORGANIZER;CN=%s:mailto:%s", icsEscape(organizerName), organizerEmail),
		fmt.Sprintf("ATTENDEE;CN=%s;ROLE=REQ-PARTICIPANT;RSVP=TRUE:mailto:%s", icsEscape(req.Attendee.Name), req.Attendee.Email),
		"X-LEAD-ID:" + icsEscape(req.LeadID),
		"BEGIN:VALARM",
		"TRIGGER:-PT10M",
		"ACTION:DISPLAY",
		"DESCRIPTION:Reminder",
		"END:VALARM",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

var icsReplacer = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)

func icsEscape(s string) string {
	return icsReplacer.Replace(s)
}

var _ model.CalendarBooking = (*EmailInvite)(nil)
