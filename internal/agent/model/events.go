package model

import (
	"fmt"
	"time"
)

const EventMeetingRequested = "lead.meeting_requested"

// MeetingRequested is emitted every time a turn ends with schedule_meeting.
// Attempt counts requests per lead and, together with LeadID, keys delivery.
type MeetingRequested struct {
	LeadID         string               `json:"leadId"`
	ConversationID string               `json:"conversationId"`
	CustomerID     string               `json:"customerId"`
	CustomerName   string               `json:"customerName,omitempty"`
	CustomerEmail  string               `json:"customerEmail,omitempty"`
	Attempt        int                  `json:"attempt"`
	Score          int                  `json:"leadScore"`
	Profile        QualificationProfile `json:"qualificationProfile"`
	RequestedAt    time.Time            `json:"requestedAt"`
}

func (MeetingRequested) EventName() string { return EventMeetingRequested }

// Key identifies one request of one lead.
func (e MeetingRequested) Key() string {
	return fmt.Sprintf("%s:%d", e.LeadID, e.Attempt)
}

type Attendee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type TimeWindow struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	TimeZone string    `json:"timeZone"`
}

// MeetingRequest is what the calendar collaborator is asked to create.
type MeetingRequest struct {
	// Key is MeetingRequested.Key; providers derive a stable event id from it.
	Key         string
	LeadID      string
	CustomerID  string
	Subject     string
	Description string
	Attendee    Attendee
	Window      TimeWindow
}

type BookingResult struct {
	EventID     string `json:"eventId"`
	MeetingLink string `json:"meetingLink,omitempty"`
}

const AppointmentConfirmed = "confirmed"

// Appointment is a booking the calendar accepted.
type Appointment struct {
	ID              string    `json:"id"`
	LeadID          string    `json:"leadId"`
	ConversationID  string    `json:"conversationId"`
	CustomerID      string    `json:"customerId"`
	ExternalEventID string    `json:"externalEventId"`
	MeetingLink     string    `json:"meetingLink,omitempty"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	TimeZone        string    `json:"timeZone"`
	Status          string    `json:"status"`
	Attempt         int       `json:"attempt"`
	CreatedAt       time.Time `json:"createdAt"`
}
