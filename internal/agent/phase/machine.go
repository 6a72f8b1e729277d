// Package phase holds the conversation phase transition policy.
package phase

import (
	"fmt"
	"strings"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	errx "github.com/Chative-lead-agent/server/internal/core/error"
)

const (
	// ClosingThreshold moves a qualifying lead to closing.
	ClosingThreshold = 50
	// SchedulingThreshold is the minimum score for a scheduling request to force booking.
	SchedulingThreshold = 40
)

// Rule names which clause of the policy produced a transition.
const (
	RuleNone             = "none"
	RulePainPoint        = "pain_point_identified"
	RuleScoreThreshold   = "score_threshold"
	RuleObjectionCleared = "objection_cleared"
	RuleInterest         = "interest_in_closing"
	RuleSchedulingIntent = "scheduling_intent"
)

// SchedulingVocabulary triggers the booking override when found anywhere in the text.
var SchedulingVocabulary = []string{
	"schedule", "meeting", "call", "demo", "consultation", "book", "calendar",
	"available", "time", "when", "appointment", "discuss", "talk",
}

// Input is what the policy looks at for one turn.
type Input struct {
	Current       model.Phase
	Score         int // post-update score
	NewPainPoints int
	NewInterests  int
	Text          string
}

// Next evaluates the transition policy once. At most one forward step is taken
// per turn unless the scheduling override applies.
func Next(in Input) model.Transition {
	t := model.Transition{
		From:   in.Current,
		To:     in.Current,
		Action: model.ActionContinueConversation,
		Rule:   RuleNone,
	}

	switch in.Current {
	case model.PhaseGreeting:
		if in.NewPainPoints > 0 {
			t.To, t.Rule = model.PhaseQualification, RulePainPoint
		}
	case model.PhaseQualification:
		if in.Score >= ClosingThreshold {
			t.To, t.Rule = model.PhaseClosing, RuleScoreThreshold
		}
	case model.PhaseObjectionHandling:
		// Only an operator puts a conversation here; it leaves once the lead is warm again.
		if in.Score >= ClosingThreshold {
			t.To, t.Rule = model.PhaseClosing, RuleObjectionCleared
		}
	case model.PhaseClosing:
		if in.NewInterests > 0 {
			t.To, t.Rule = model.PhaseBooking, RuleInterest
			t.Action = model.ActionScheduleMeeting
		}
	case model.PhaseBooking:
	}

	if in.Score >= SchedulingThreshold && HasSchedulingIntent(in.Text) {
		t.To, t.Rule = model.PhaseBooking, RuleSchedulingIntent
		t.Action = model.ActionScheduleMeeting
	}

	return t
}

// HasSchedulingIntent reports whether text contains any scheduling word as a
// case-insensitive substring.
func HasSchedulingIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range SchedulingVocabulary {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Override validates an operator-requested move. Phases only move forward.
func Override(from, to model.Phase) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %d", errx.ErrInvalidPhase, uint8(to))
	}
	if to.Before(from) {
		return fmt.Errorf("%w: %s -> %s", errx.ErrBackwardTransition, from, to)
	}
	return nil
}
