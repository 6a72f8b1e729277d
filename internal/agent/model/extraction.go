package model

// Extraction is the qualification signal delta of a single customer message.
// The zero value is the safe default used whenever the completion output is unusable.
type Extraction struct {
	PainPoints        []string `json:"painPoints"`
	Interests         []string `json:"interests"`
	Objections        []string `json:"objections,omitempty"`
	BudgetMentioned   bool     `json:"budgetMentioned"`
	Budget            string   `json:"budget,omitempty"`
	TimelineMentioned bool     `json:"timelineMentioned"`
	Timeline          string   `json:"timeline,omitempty"`
	CompanySize       string   `json:"companySize,omitempty"`
	DecisionMaker     TriState `json:"decisionMakerConfirmed"`

	// ParsingMetadata records what the lenient parser had to repair.
	ParsingMetadata map[string]any `json:"-"`
}

// Empty reports whether the delta carries no signal at all.
func (e Extraction) Empty() bool {
	return len(e.PainPoints) == 0 && len(e.Interests) == 0 && len(e.Objections) == 0 &&
		!e.BudgetMentioned && !e.TimelineMentioned && !e.DecisionMaker.Known() && e.CompanySize == ""
}
