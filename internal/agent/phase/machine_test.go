package phase

import (
	"errors"
	"testing"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	errx "github.com/Chative-lead-agent/server/internal/core/error"
)

func TestNextTransitions(t *testing.T) {
	tests := []struct {
		name   string
		in     Input
		to     model.Phase
		action model.Action
		rule   string
	}{
		{
			name:   "greeting stays without pain points",
			in:     Input{Current: model.PhaseGreeting, Text: "Hi, I'm interested in your services"},
			to:     model.PhaseGreeting,
			action: model.ActionContinueConversation,
			rule:   RuleNone,
		},
		{
			name:   "greeting to qualification on new pain point",
			in:     Input{Current: model.PhaseGreeting, Score: 60, NewPainPoints: 1, Text: "our reports are slow"},
			to:     model.PhaseQualification,
			action: model.ActionContinueConversation,
			rule:   RulePainPoint,
		},
		{
			name:   "qualification crossing 50 closes on the same turn",
			in:     Input{Current: model.PhaseQualification, Score: 50, Text: "we have budget approved"},
			to:     model.PhaseClosing,
			action: model.ActionContinueConversation,
			rule:   RuleScoreThreshold,
		},
		{
			name:   "qualification below 50 stays",
			in:     Input{Current: model.PhaseQualification, Score: 49, Text: "we have budget approved"},
			to:     model.PhaseQualification,
			action: model.ActionContinueConversation,
			rule:   RuleNone,
		},
		{
			name:   "closing to booking on new interest",
			in:     Input{Current: model.PhaseClosing, Score: 55, NewInterests: 1, Text: "the reporting add-on sounds good"},
			to:     model.PhaseBooking,
			action: model.ActionScheduleMeeting,
			rule:   RuleInterest,
		},
		{
			name:   "objection handling clears at 50",
			in:     Input{Current: model.PhaseObjectionHandling, Score: 52, Text: "ok that helps"},
			to:     model.PhaseClosing,
			action: model.ActionContinueConversation,
			rule:   RuleObjectionCleared,
		},
		{
			name:   "scheduling word below 40 is ignored",
			in:     Input{Current: model.PhaseGreeting, Score: 39, Text: "Can we book a demo?"},
			to:     model.PhaseGreeting,
			action: model.ActionContinueConversation,
			rule:   RuleNone,
		},
		{
			name:   "booking stays in booking and schedules again",
			in:     Input{Current: model.PhaseBooking, Score: 90, Text: "what time works?"},
			to:     model.PhaseBooking,
			action: model.ActionScheduleMeeting,
			rule:   RuleSchedulingIntent,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Next(tc.in)
			if got.To != tc.to || got.Action != tc.action || got.Rule != tc.rule {
				t.Fatalf("expected %s/%s/%s, got %s/%s/%s", tc.to, tc.action, tc.rule, got.To, got.Action, got.Rule)
			}
			if got.From != tc.in.Current {
				t.Fatalf("expected from=%s, got %s", tc.in.Current, got.From)
			}
		})
	}
}

func TestSchedulingOverrideFromEveryPhase(t *testing.T) {
	for _, p := range model.Phases {
		got := Next(Input{Current: p, Score: 45, NewPainPoints: 1, NewInterests: 1, Text: "When are you AVAILABLE?"})
		if got.To != model.PhaseBooking || got.Action != model.ActionScheduleMeeting {
			t.Fatalf("from %s: expected booking/schedule_meeting, got %s/%s", p, got.To, got.Action)
		}
	}
}

func TestNextNeverMovesBackwards(t *testing.T) {
	texts := []string{"", "hello", "let's talk", "no thanks"}
	for _, p := range model.Phases {
		for score := 0; score <= 100; score += 5 {
			for _, text := range texts {
				for _, n := range []int{0, 1} {
					got := Next(Input{Current: p, Score: score, NewPainPoints: n, NewInterests: n, Text: text})
					if got.To.Before(p) {
						t.Fatalf("moved backwards from %s to %s", p, got.To)
					}
					if got.To == model.PhaseObjectionHandling && p != model.PhaseObjectionHandling {
						t.Fatalf("entered objection handling automatically from %s", p)
					}
				}
			}
		}
	}
}

func TestOverride(t *testing.T) {
	if err := Override(model.PhaseGreeting, model.PhaseObjectionHandling); err != nil {
		t.Fatalf("expected forward override to pass, got %v", err)
	}
	if err := Override(model.PhaseClosing, model.PhaseClosing); err != nil {
		t.Fatalf("expected same-phase override to pass, got %v", err)
	}
	if err := Override(model.PhaseClosing, model.PhaseQualification); !errors.Is(err, errx.ErrBackwardTransition) {
		t.Fatalf("expected ErrBackwardTransition, got %v", err)
	}
	if err := Override(model.PhaseGreeting, model.Phase(9)); !errors.Is(err, errx.ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
}
