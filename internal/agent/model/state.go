package model

import "time"

// DefaultPersonality is the tone given to newly created agents.
const DefaultPersonality = "consultative"

// ProgressContext tracks what the agent has covered so far. Sets and booleans
// only ever grow.
type ProgressContext struct {
	QualificationProgress  int  `json:"qualificationProgress"`
	ObjectionsRaised       Set  `json:"objectionsRaised"`
	PainPointsIdentified   Set  `json:"painPointsIdentified"`
	InterestsExpressed     Set  `json:"interestsExpressed"`
	BudgetMentioned        bool `json:"budgetMentioned"`
	TimelineMentioned      bool `json:"timelineMentioned"`
	DecisionMakerConfirmed bool `json:"decisionMakerConfirmed"`
}

// AgentState is the phase machine record, 1:1 with a Lead.
type AgentState struct {
	ConversationID   string          `json:"conversationId"`
	Phase            Phase           `json:"phase"`
	Progress         ProgressContext `json:"progressContext"`
	AgentPersonality string          `json:"agentPersonality"`
	MeetingRequests  int             `json:"meetingRequests"`
	LastUpdated      time.Time       `json:"lastUpdated"`
	CreatedAt        time.Time       `json:"createdAt"`
}

func (s *AgentState) Clone() *AgentState {
	if s == nil {
		return nil
	}
	c := *s
	c.Progress.ObjectionsRaised = append(Set(nil), s.Progress.ObjectionsRaised...)
	c.Progress.PainPointsIdentified = append(Set(nil), s.Progress.PainPointsIdentified...)
	c.Progress.InterestsExpressed = append(Set(nil), s.Progress.InterestsExpressed...)
	return &c
}
