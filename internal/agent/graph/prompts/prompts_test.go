package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

var testPromptConfig = model.ResponsePromptConfig{BusinessName: "Acme", AgentName: "Alex"}

func TestPhaseCatalogCoversEveryPhase(t *testing.T) {
	cat, err := LoadPhaseCatalog(testPromptConfig)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	for _, p := range model.Phases {
		out, err := cat.Render(context.Background(), PhaseInput{Phase: p, Score: 42})
		if err != nil {
			t.Fatalf("render %s: %v", p, err)
		}
		if !strings.Contains(out, "Current lead score: 42") {
			t.Fatalf("expected score in %s prompt, got %q", p, out)
		}
		if !strings.Contains(out, model.NoKnowledgeContext) {
			t.Fatalf("expected empty knowledge fallback in %s prompt", p)
		}
	}
}

func TestPhaseCatalogEmbedsProfileAndObjections(t *testing.T) {
	cat, err := LoadPhaseCatalog(testPromptConfig)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	ctx := context.Background()

	out, err := cat.Render(ctx, PhaseInput{
		Phase:     model.PhaseQualification,
		Profile:   model.QualificationProfile{PainPoints: model.Set{"manual reporting"}},
		Knowledge: "Plans start at $99.",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `"painPoints":["manual reporting"]`) || !strings.Contains(out, "Plans start at $99.") {
		t.Fatalf("unexpected qualification prompt %q", out)
	}

	out, err = cat.Render(ctx, PhaseInput{Phase: model.PhaseObjectionHandling, Objections: []string{"price", "timing"}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "Objections raised: price, timing") {
		t.Fatalf("unexpected objection prompt %q", out)
	}
}

func TestParsePhaseCatalogRejectsGaps(t *testing.T) {
	if _, err := ParsePhaseCatalog(testPromptConfig, []byte("greeting: hi\n")); err == nil {
		t.Fatalf("expected error for missing phases")
	}
	if _, err := ParsePhaseCatalog(testPromptConfig, []byte("negotiation: hi\n")); err == nil {
		t.Fatalf("expected error for unknown phase")
	}
}

func TestRenderExtractionSystem(t *testing.T) {
	out, err := RenderExtractionSystem(context.Background(), testPromptConfig, model.QualificationProfile{Budget: "$5k", BudgetMentioned: true})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `"budget":"$5k"`) || !strings.Contains(out, "Never write undefined") {
		t.Fatalf("unexpected extraction prompt %q", out)
	}
}
