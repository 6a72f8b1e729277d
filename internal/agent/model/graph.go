package model

import "time"

// TurnState stores per-invocation state for the Eino turn graph.
// Concurrency model:
//   - Registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen inside Eino state handlers or compose.ProcessState,
//     which Eino serialises, so no extra mutex is needed.
//   - Do not keep references to it after the invocation returns; persistence goes
//     through the repositories.
type TurnState struct {
	Inbound InboundMessage
	Now     time.Time

	Lead    *Lead
	State   *AgentState
	Created bool

	Extraction Extraction
	Snippets   []KnowledgeSnippet

	Scoring    ScoreChange
	Transition Transition

	Outbound *OutboundMessage
	Meeting  *MeetingRequested

	// Accumulated total LLM cost (USD) across model invocations for this turn
	TotalCostUSD float64
}

// ScoreChange is the outcome of applying one Extraction to a Lead.
type ScoreChange struct {
	Previous      int        `json:"previous"`
	Increment     int        `json:"increment"`
	Score         int        `json:"score"`
	Status        LeadStatus `json:"status"`
	NewPainPoints []string   `json:"newPainPoints,omitempty"`
	NewInterests  []string   `json:"newInterests,omitempty"`
	Conditions    int        `json:"conditions"`
}

// Transition is the phase machine verdict for one turn.
type Transition struct {
	From   Phase  `json:"from"`
	To     Phase  `json:"to"`
	Action Action `json:"action"`
	Rule   string `json:"rule"`
}

// Turn is what one processed inbound message produced.
type Turn struct {
	ConversationID string            `json:"conversationId"`
	Lead           *Lead             `json:"lead"`
	State          *AgentState       `json:"state"`
	Created        bool              `json:"created"`
	Extraction     Extraction        `json:"extraction"`
	Scoring        ScoreChange       `json:"scoring"`
	Transition     Transition        `json:"transition"`
	Outbound       *OutboundMessage  `json:"outbound"`
	Meeting        *MeetingRequested `json:"meeting,omitempty"`
	CostUSD        float64           `json:"costUsd"`
}
