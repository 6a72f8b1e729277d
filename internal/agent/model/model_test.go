package model

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/cloudwego/eino/schema"

	errx "github.com/Chative-lead-agent/server/internal/core/error"
)

func TestPhaseRoundTripAndOrder(t *testing.T) {
	for i, p := range Phases {
		b, err := json.Marshal(struct {
			Phase Phase `json:"phase"`
		}{p})
		if err != nil {
			t.Fatalf("marshal %s: %v", p, err)
		}
		var out struct {
			Phase Phase `json:"phase"`
		}
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if out.Phase != p {
			t.Fatalf("expected phase=%q, got %q", p, out.Phase)
		}
		if i > 0 && !Phases[i-1].Before(p) {
			t.Fatalf("expected %s before %s", Phases[i-1], p)
		}
	}
}

func TestParsePhaseRejectsUnknown(t *testing.T) {
	_, err := ParsePhase("negotiation")
	if !errors.Is(err, errx.ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
}

func TestTriStateJSON(t *testing.T) {
	cases := map[string]TriState{"null": Unknown, "true": Yes, "false": No}
	for raw, want := range cases {
		var got TriState
		if err := json.Unmarshal([]byte(raw), &got); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
		b, _ := json.Marshal(got)
		if string(b) != raw {
			t.Fatalf("expected json=%q, got %q", raw, string(b))
		}
	}
}

func TestSetUnionIsCaseSensitiveAndReportsAdded(t *testing.T) {
	s := Set{"slow onboarding"}
	out, added := s.Union("slow onboarding", "Slow onboarding", "", "pricing")
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %v", out)
	}
	if len(added) != 2 || added[0] != "Slow onboarding" || added[1] != "pricing" {
		t.Fatalf("unexpected added values %v", added)
	}
	if len(s) != 1 {
		t.Fatalf("expected receiver untouched, got %v", s)
	}
}

func TestComputeCost(t *testing.T) {
	c := ComputeCost("gemini-2.5-flash", &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000})
	if math.Abs(c.TotalUSD-2.80) > 1e-9 {
		t.Fatalf("expected total=2.80, got %v", c.TotalUSD)
	}
	if ComputeCost("unknown", nil).TotalUSD != 0 {
		t.Fatalf("expected zero cost without usage")
	}
}
