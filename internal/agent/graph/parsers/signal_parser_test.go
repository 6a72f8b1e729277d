package parsers

import (
	"strings"
	"testing"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

func TestParseSignalsWellFormed(t *testing.T) {
	in := `{"painPoints":["manual reporting","slow onboarding"],"interests":["automation"],
	"budgetMentioned":true,"budget":"$20k","timelineMentioned":false,"timeline":"Q3",
	"decisionMakerConfirmed":true,"objections":["price"]}`

	out := ParseSignals(in)

	if len(out.PainPoints) != 2 || out.PainPoints[0] != "manual reporting" {
		t.Fatalf("unexpected pain points %v", out.PainPoints)
	}
	if len(out.Interests) != 1 || out.Interests[0] != "automation" {
		t.Fatalf("unexpected interests %v", out.Interests)
	}
	if !out.BudgetMentioned || out.Budget != "$20k" {
		t.Fatalf("expected budget=%q, got %q (flag %v)", "$20k", out.Budget, out.BudgetMentioned)
	}
	if out.TimelineMentioned || out.Timeline != "" {
		t.Fatalf("expected timeline ignored when flag is false, got %q", out.Timeline)
	}
	if out.DecisionMaker != model.Yes {
		t.Fatalf("expected decision maker=%s, got %s", model.Yes, out.DecisionMaker)
	}
	if len(out.Objections) != 1 {
		t.Fatalf("unexpected objections %v", out.Objections)
	}
	if _, ok := out.ParsingMetadata["parsing_errors"]; ok {
		t.Fatalf("expected no parsing errors, got %v", out.ParsingMetadata["parsing_errors"])
	}
}

func TestParseSignalsLenientCases(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		check    func(t *testing.T, out model.Extraction)
		wantErrs bool
	}{
		{
			name: "code fence and prose",
			in:   "Here you go:\n```json\n{\"painPoints\":[\"churn\"],\"budgetMentioned\":false}\n```",
			check: func(t *testing.T, out model.Extraction) {
				if len(out.PainPoints) != 1 || out.PainPoints[0] != "churn" {
					t.Fatalf("unexpected pain points %v", out.PainPoints)
				}
			},
		},
		{
			name: "undefined literals",
			in:   `{"painPoints":[],"interests":undefined,"budgetMentioned":undefined,"decisionMakerConfirmed":undefined}`,
			check: func(t *testing.T, out model.Extraction) {
				if len(out.Interests) != 0 || out.BudgetMentioned {
					t.Fatalf("expected defaults, got %+v", out)
				}
				if out.DecisionMaker != model.Unknown {
					t.Fatalf("expected unknown decision maker, got %s", out.DecisionMaker)
				}
				if out.ParsingMetadata["undefined_replaced"] != true {
					t.Fatalf("expected undefined_replaced marker")
				}
			},
		},
		{
			name: "string booleans are not booleans",
			in:   `{"budgetMentioned":"true","timelineMentioned":1,"decisionMakerConfirmed":"yes"}`,
			check: func(t *testing.T, out model.Extraction) {
				if out.BudgetMentioned || out.TimelineMentioned {
					t.Fatalf("expected flags to default to false, got %+v", out)
				}
				if out.DecisionMaker != model.Unknown {
					t.Fatalf("expected unknown decision maker, got %s", out.DecisionMaker)
				}
			},
			wantErrs: true,
		},
		{
			name: "explicit false decision maker",
			in:   `{"decisionMakerConfirmed":false}`,
			check: func(t *testing.T, out model.Extraction) {
				if out.DecisionMaker != model.No {
					t.Fatalf("expected decision maker=%s, got %s", model.No, out.DecisionMaker)
				}
			},
		},
		{
			name: "mixed array element types",
			in:   `{"interests":["demo", 42, null, "demo", "  "]}`,
			check: func(t *testing.T, out model.Extraction) {
				if len(out.Interests) != 1 || out.Interests[0] != "demo" {
					t.Fatalf("unexpected interests %v", out.Interests)
				}
			},
			wantErrs: true,
		},
		{
			name: "no json at all",
			in:   "I could not analyse this message.",
			check: func(t *testing.T, out model.Extraction) {
				if !out.Empty() {
					t.Fatalf("expected empty delta, got %+v", out)
				}
			},
			wantErrs: true,
		},
		{
			name: "truncated object",
			in:   `{"painPoints":["a","b"`,
			check: func(t *testing.T, out model.Extraction) {
				if !out.Empty() {
					t.Fatalf("expected empty delta, got %+v", out)
				}
			},
			wantErrs: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := ParseSignals(tc.in)
			tc.check(t, out)
			_, hasErrs := out.ParsingMetadata["parsing_errors"]
			if hasErrs != tc.wantErrs {
				t.Fatalf("expected parsing_errors present=%v, got %v (%v)", tc.wantErrs, hasErrs, out.ParsingMetadata)
			}
		})
	}
}

func TestParseSignalsBoundsListSize(t *testing.T) {
	items := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		items = append(items, `"p`+strings.Repeat("x", i)+`"`)
	}
	out := ParseSignals(`{"painPoints":[` + strings.Join(items, ",") + `]}`)
	if len(out.PainPoints) != maxListItems {
		t.Fatalf("expected %d pain points, got %d", maxListItems, len(out.PainPoints))
	}
}
