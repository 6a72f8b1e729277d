package composer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Chative-lead-agent/server/internal/agent/graph/prompts"
	"github.com/Chative-lead-agent/server/internal/agent/model"
)

type fakeCompletion struct {
	out    string
	err    error
	system string
}

func (f *fakeCompletion) Complete(_ context.Context, system, _ string) (string, error) {
	f.system = system
	return f.out, f.err
}

func newComposer(t *testing.T, fc *fakeCompletion) *Composer {
	t.Helper()
	cat, err := prompts.LoadPhaseCatalog(model.ResponsePromptConfig{BusinessName: "Acme", AgentName: "Alex"})
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return New(fc, cat, 0)
}

func TestComposeUsesPhaseTemplate(t *testing.T) {
	fc := &fakeCompletion{out: "  Happy to help!  "}
	c := newComposer(t, fc)

	reply := c.Compose(context.Background(), Input{
		Phase:    model.PhaseClosing,
		Lead:     &model.Lead{Score: 55},
		Text:     "sounds good",
		Snippets: []model.KnowledgeSnippet{{Content: "Plans start at $99.", Source: "pricing.pdf", RelevanceScore: 0.9}},
	})

	if reply.Text != "Happy to help!" || reply.Kind != model.OutboundReply {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if !strings.Contains(fc.system, "closing phase") || !strings.Contains(fc.system, "Current lead score: 55") {
		t.Fatalf("expected closing template with score, got %q", fc.system)
	}
	if !strings.Contains(fc.system, "Plans start at $99.") {
		t.Fatalf("expected knowledge context in prompt")
	}
}

func TestComposeFallsBack(t *testing.T) {
	for name, fc := range map[string]*fakeCompletion{
		"error": {err: errors.New("quota")},
		"empty": {out: "   "},
	} {
		t.Run(name, func(t *testing.T) {
			reply := newComposer(t, fc).Compose(context.Background(), Input{Phase: model.PhaseGreeting, Lead: &model.Lead{}})
			if reply.Text != model.FallbackReply || reply.Kind != model.OutboundFallback {
				t.Fatalf("expected fallback reply, got %+v", reply)
			}
		})
	}
}

func TestExcerpts(t *testing.T) {
	long := strings.Repeat("x", 250)
	out := Excerpts([]model.KnowledgeSnippet{{Content: long, Source: "a"}, {Content: "short", Source: "b"}}, 200)
	if len(out[0].Content) != 203 || !strings.HasSuffix(out[0].Content, "...") {
		t.Fatalf("expected 200 chars plus ellipsis, got %d", len(out[0].Content))
	}
	if out[1].Content != "short" || out[1].Source != "b" {
		t.Fatalf("unexpected short snippet %+v", out[1])
	}
}

func TestKnowledgeContextEmpty(t *testing.T) {
	if got := KnowledgeContext(nil); got != model.NoKnowledgeContext {
		t.Fatalf("expected %q, got %q", model.NoKnowledgeContext, got)
	}
}

func TestAdvanceProgress(t *testing.T) {
	p := model.ProgressContext{QualificationProgress: 95, PainPointsIdentified: model.Set{"churn"}, BudgetMentioned: true}
	p = AdvanceProgress(p, model.Extraction{
		PainPoints:    []string{"churn", "cost"},
		Objections:    []string{"price"},
		DecisionMaker: model.No,
	})
	if p.QualificationProgress != 100 {
		t.Fatalf("expected progress clamped to 100, got %d", p.QualificationProgress)
	}
	if len(p.PainPointsIdentified) != 2 || len(p.ObjectionsRaised) != 1 {
		t.Fatalf("unexpected sets %+v", p)
	}
	if !p.BudgetMentioned || !p.DecisionMakerConfirmed || p.TimelineMentioned {
		t.Fatalf("unexpected flags %+v", p)
	}
}
