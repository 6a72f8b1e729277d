package scoring

import (
	"math/rand"
	"testing"
	"time"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestApplySinglePainPoint(t *testing.T) {
	lead := &model.Lead{Score: 20}
	got := Apply(lead, model.Extraction{PainPoints: []string{"manual reporting"}}, now)
	if lead.Score != 30 || got.Increment != 10 {
		t.Fatalf("expected score=30 increment=10, got score=%d increment=%d", lead.Score, got.Increment)
	}
	if !lead.LastQualificationAt.Equal(now) {
		t.Fatalf("expected lastQualificationAt to be stamped")
	}
}

func TestApplyAllSignalsClampsAt100(t *testing.T) {
	lead := &model.Lead{Score: 10}
	got := Apply(lead, model.Extraction{
		PainPoints:        []string{"churn"},
		Interests:         []string{"analytics"},
		BudgetMentioned:   true,
		Budget:            "$50k",
		TimelineMentioned: true,
		Timeline:          "next quarter",
		DecisionMaker:     model.Yes,
	}, now)

	if got.Increment != 95 {
		t.Fatalf("expected raw increment=95, got %d", got.Increment)
	}
	if lead.Score != 100 {
		t.Fatalf("expected clamped score=100, got %d", lead.Score)
	}
	if lead.Status != model.LeadStatusQualified {
		t.Fatalf("expected status=%q, got %q", model.LeadStatusQualified, lead.Status)
	}
	if lead.Profile.Budget != "$50k" || lead.Profile.Timeline != "next quarter" {
		t.Fatalf("unexpected profile %+v", lead.Profile)
	}
}

func TestApplyKnownPainPointIsNotRescored(t *testing.T) {
	lead := &model.Lead{}
	delta := model.Extraction{PainPoints: []string{"manual reporting"}}

	Apply(lead, delta, now)
	second := Apply(lead, delta, now.Add(time.Minute))

	if len(lead.Profile.PainPoints) != 1 {
		t.Fatalf("expected one pain point, got %v", lead.Profile.PainPoints)
	}
	if second.Increment != 0 || lead.Score != 10 {
		t.Fatalf("expected no second increment, got increment=%d score=%d", second.Increment, lead.Score)
	}
}

func TestApplyFlagsScoreOnlyOnce(t *testing.T) {
	lead := &model.Lead{}
	Apply(lead, model.Extraction{BudgetMentioned: true, Budget: "$10k"}, now)
	again := Apply(lead, model.Extraction{BudgetMentioned: true, Budget: "$15k"}, now)

	if again.Increment != 0 {
		t.Fatalf("expected budget to score once, got increment=%d", again.Increment)
	}
	if lead.Profile.Budget != "$15k" {
		t.Fatalf("expected budget overwritten to %q, got %q", "$15k", lead.Profile.Budget)
	}
}

func TestApplyBudgetValueIgnoredWithoutFlag(t *testing.T) {
	lead := &model.Lead{Profile: model.QualificationProfile{Budget: "$10k"}}
	Apply(lead, model.Extraction{Budget: "$1"}, now)
	if lead.Profile.Budget != "$10k" {
		t.Fatalf("expected budget=%q, got %q", "$10k", lead.Profile.Budget)
	}
}

func TestApplyDecisionMakerTriState(t *testing.T) {
	lead := &model.Lead{}

	got := Apply(lead, model.Extraction{}, now)
	if got.Increment != 0 || lead.Profile.DecisionMaker != model.Unknown {
		t.Fatalf("expected silent message to leave decision maker unknown, got %s", lead.Profile.DecisionMaker)
	}

	got = Apply(lead, model.Extraction{DecisionMaker: model.No}, now)
	if got.Increment != PointsDecisionMaker || lead.Profile.DecisionMaker != model.No {
		t.Fatalf("expected confirmed false to score %d, got %d (%s)", PointsDecisionMaker, got.Increment, lead.Profile.DecisionMaker)
	}

	got = Apply(lead, model.Extraction{DecisionMaker: model.Yes}, now)
	if got.Increment != 0 || lead.Profile.DecisionMaker != model.Yes {
		t.Fatalf("expected update without rescoring, got %d (%s)", got.Increment, lead.Profile.DecisionMaker)
	}
}

func TestBonusNeedsThreeConditions(t *testing.T) {
	if got := Increment(Conditions{NewPainPoint: true, NewInterest: true}); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
	if got := Increment(Conditions{NewPainPoint: true, NewInterest: true, BudgetNew: true}); got != 55 {
		t.Fatalf("expected 55, got %d", got)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[int]model.LeadStatus{
		85: model.LeadStatusQualified,
		80: model.LeadStatusQualified,
		79: model.LeadStatusNurturing,
		60: model.LeadStatusNurturing,
		50: model.LeadStatusNurturing,
		49: model.LeadStatusProspect,
		10: model.LeadStatusProspect,
	}
	for score, want := range cases {
		if got := StatusFor(score); got != want {
			t.Fatalf("expected status(%d)=%q, got %q", score, want, got)
		}
	}
}

func TestScoreIsMonotoneAndBounded(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	words := []string{"a", "b", "c", "d", "e", "f"}
	pick := func() []string {
		var out []string
		for _, w := range words {
			if r.Intn(4) == 0 {
				out = append(out, w)
			}
		}
		return out
	}

	for run := 0; run < 50; run++ {
		lead := &model.Lead{}
		prev := 0
		for turn := 0; turn < 20; turn++ {
			delta := model.Extraction{
				PainPoints:        pick(),
				Interests:         pick(),
				BudgetMentioned:   r.Intn(3) == 0,
				TimelineMentioned: r.Intn(3) == 0,
				DecisionMaker:     model.TriState(r.Intn(3)),
			}
			Apply(lead, delta, now)
			if lead.Score < prev || lead.Score < 0 || lead.Score > MaxScore {
				t.Fatalf("run %d turn %d: score moved from %d to %d", run, turn, prev, lead.Score)
			}
			if lead.Status != StatusFor(lead.Score) {
				t.Fatalf("status %q does not match score %d", lead.Status, lead.Score)
			}
			prev = lead.Score
		}
	}
}
