package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type LeadStatus string

const (
	LeadStatusProspect  LeadStatus = "prospect"
	LeadStatusNurturing LeadStatus = "nurturing"
	LeadStatusQualified LeadStatus = "qualified"
)

// SystemAgent is assigned to leads created automatically from inbound traffic.
const SystemAgent = "system"

// TriState distinguishes "never said" from an explicit yes or no.
type TriState uint8

const (
	Unknown TriState = iota
	Yes
	No
)

// TriStateOf converts an explicit boolean answer.
func TriStateOf(b bool) TriState {
	if b {
		return Yes
	}
	return No
}

func (t TriState) Known() bool { return t == Yes || t == No }

func (t TriState) String() string {
	switch t {
	case Yes:
		return "true"
	case No:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes unknown as null so dashboards see a plain optional bool.
func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case Yes:
		return []byte("true"), nil
	case No:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (t *TriState) UnmarshalJSON(b []byte) error {
	var v *bool
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("decision maker: %w", err)
	}
	if v == nil {
		*t = Unknown
		return nil
	}
	*t = TriStateOf(*v)
	return nil
}

// Set is an insertion-ordered collection of distinct, case-sensitive strings.
type Set []string

func (s Set) Contains(v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Union returns s extended with the values it did not already hold, and those values.
func (s Set) Union(values ...string) (Set, []string) {
	out := make(Set, len(s), len(s)+len(values))
	copy(out, s)
	var added []string
	for _, v := range values {
		if v == "" || out.Contains(v) {
			continue
		}
		out = append(out, v)
		added = append(added, v)
	}
	return out, added
}

// QualificationProfile is the cumulative picture of what the customer told us.
type QualificationProfile struct {
	Budget            string   `json:"budget,omitempty"`
	Timeline          string   `json:"timeline,omitempty"`
	BudgetMentioned   bool     `json:"budgetMentioned"`
	TimelineMentioned bool     `json:"timelineMentioned"`
	PainPoints        Set      `json:"painPoints"`
	Interests         Set      `json:"interests"`
	CompanySize       string   `json:"companySize,omitempty"`
	DecisionMaker     TriState `json:"decisionMaker"`
}

// Lead is the qualification record of one conversation.
type Lead struct {
	ID                  string               `json:"id"`
	CustomerID          string               `json:"customerId"`
	ConversationID      string               `json:"conversationId"`
	Status              LeadStatus           `json:"status"`
	Score               int                  `json:"leadScore"`
	Profile             QualificationProfile `json:"qualificationProfile"`
	AssignedAgent       string               `json:"assignedAgent"`
	LastQualificationAt time.Time            `json:"lastQualificationAt"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored sets.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	c := *l
	c.Profile.PainPoints = append(Set(nil), l.Profile.PainPoints...)
	c.Profile.Interests = append(Set(nil), l.Profile.Interests...)
	return &c
}
