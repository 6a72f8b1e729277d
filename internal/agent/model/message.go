package model

import "time"

// InboundMessage is one customer message delivered by the channel layer.
type InboundMessage struct {
	ConversationID string    `json:"conversationId" validate:"required,max=128"`
	MessageID      string    `json:"messageId,omitempty" validate:"omitempty,max=128"`
	CustomerID     string    `json:"customerId,omitempty" validate:"omitempty,max=128"`
	CustomerName   string    `json:"customerName,omitempty" validate:"omitempty,max=200"`
	CustomerEmail  string    `json:"customerEmail,omitempty" validate:"omitempty,email"`
	Text           string    `json:"text" validate:"required,max=8000"`
	ArrivalTime    time.Time `json:"arrivalTime"`
}

type KnowledgeSnippet struct {
	Content        string  `json:"content"`
	Source         string  `json:"source"`
	RelevanceScore float64 `json:"relevanceScore"`
}

type OutboundKind string

const (
	OutboundReply    OutboundKind = "reply"
	OutboundFallback OutboundKind = "fallback"
	OutboundApology  OutboundKind = "apology"
)

// OutboundMessage is an append-only composed reply.
type OutboundMessage struct {
	ID                string             `json:"id"`
	ConversationID    string             `json:"conversationId"`
	InReplyTo         string             `json:"inReplyTo,omitempty"`
	Kind              OutboundKind       `json:"kind"`
	Phase             Phase              `json:"phase"`
	Text              string             `json:"text"`
	KnowledgeSnippets []KnowledgeSnippet `json:"knowledgeSnippets"`
	CreatedAt         time.Time          `json:"createdAt"`
}

const (
	// FallbackReply is sent when composition fails or returns nothing.
	FallbackReply = "I'd be happy to help you with that. Could you tell me more about your needs?"
	// ApologyReply is stored when a turn aborts.
	ApologyReply = "I apologize, but I'm experiencing technical difficulties. Let me connect you with a human agent who can better assist you."
	// NoKnowledgeContext grounds the reply when search returns nothing.
	NoKnowledgeContext = "No specific knowledge base information found for this query."
)
