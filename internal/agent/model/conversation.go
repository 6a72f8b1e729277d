package model

import (
	"context"
)

// LeadRepository persists the Lead of a conversation.
type LeadRepository interface {
	// GetLead returns errx.ErrNotFound when the conversation has no lead.
	GetLead(ctx context.Context, conversationID string) (*Lead, error)

	// SaveLead upserts the lead. Implementations must never lower a stored score.
	SaveLead(ctx context.Context, lead *Lead) error
}

// StateRepository persists the AgentState of a conversation.
type StateRepository interface {
	// GetState returns errx.ErrNotFound when the conversation has no state.
	GetState(ctx context.Context, conversationID string) (*AgentState, error)

	SaveState(ctx context.Context, state *AgentState) error
}

// ConversationCreator creates the Lead and AgentState of a new conversation together.
type ConversationCreator interface {
	// CreateConversation stores both records only if neither exists. It reports
	// false without error when another writer created them first.
	CreateConversation(ctx context.Context, lead *Lead, state *AgentState) (bool, error)
}

// MessageRepository is the append-only log of outbound replies.
type MessageRepository interface {
	AppendOutbound(ctx context.Context, msg *OutboundMessage) error
	ListOutbound(ctx context.Context, conversationID string) ([]OutboundMessage, error)
}

// AppointmentRepository records bookings confirmed by the calendar.
type AppointmentRepository interface {
	SaveAppointment(ctx context.Context, appt *Appointment) error
	ListAppointments(ctx context.Context, conversationID string) ([]Appointment, error)
}

// Store bundles every repository a turn needs.
type Store interface {
	LeadRepository
	StateRepository
	ConversationCreator
	MessageRepository
	AppointmentRepository
}
