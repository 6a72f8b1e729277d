package model

import (
	"fmt"
	"strings"

	errx "github.com/Chative-lead-agent/server/internal/core/error"
)

// Phase is the sales stage of a conversation. The ordinal order is the only
// direction a conversation may move in.
type Phase uint8

const (
	PhaseGreeting Phase = iota
	PhaseQualification
	PhaseObjectionHandling
	PhaseClosing
	PhaseBooking
)

// Phases lists every phase in ordinal order.
var Phases = []Phase{
	PhaseGreeting,
	PhaseQualification,
	PhaseObjectionHandling,
	PhaseClosing,
	PhaseBooking,
}

func (p Phase) String() string {
	switch p {
	case PhaseGreeting:
		return "greeting"
	case PhaseQualification:
		return "qualification"
	case PhaseObjectionHandling:
		return "objection_handling"
	case PhaseClosing:
		return "closing"
	case PhaseBooking:
		return "booking"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the declared phases.
func (p Phase) Valid() bool {
	return p <= PhaseBooking
}

// Before reports whether p comes strictly before other.
func (p Phase) Before(other Phase) bool {
	return p < other
}

// ParsePhase maps the wire name of a phase back to its value.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "greeting":
		return PhaseGreeting, nil
	case "qualification":
		return PhaseQualification, nil
	case "objection_handling":
		return PhaseObjectionHandling, nil
	case "closing":
		return PhaseClosing, nil
	case "booking":
		return PhaseBooking, nil
	default:
		return PhaseGreeting, fmt.Errorf("%w: %q", errx.ErrInvalidPhase, s)
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", errx.ErrInvalidPhase, uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Action is the side effect requested by a phase transition.
type Action string

const (
	ActionContinueConversation Action = "continue_conversation"
	ActionScheduleMeeting      Action = "schedule_meeting"
)
