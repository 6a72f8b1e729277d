package model

import (
	"context"
	"time"
)

// TextCompletion is the generic chat capability used for extraction and replies.
type TextCompletion interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// KnowledgeSearch returns snippets ranked by relevance. An empty slice is a valid answer.
type KnowledgeSearch interface {
	Search(ctx context.Context, query string, limit int) ([]KnowledgeSnippet, error)
}

// CalendarBooking creates the external meeting.
type CalendarBooking interface {
	CreateEvent(ctx context.Context, req MeetingRequest) (BookingResult, error)
}

// MeetingPublisher hands MeetingRequested events to whoever books the meeting.
type MeetingPublisher interface {
	PublishMeetingRequested(ctx context.Context, evt MeetingRequested) error
}

// OutboundPublisher forwards composed replies to the channel layer.
type OutboundPublisher interface {
	PublishOutbound(ctx context.Context, msg OutboundMessage) error
}

// Locker serialises turns of the same conversation.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time
