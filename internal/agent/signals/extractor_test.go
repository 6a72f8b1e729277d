package signals

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

type fakeCompletion struct {
	out    string
	err    error
	system string
	user   string
}

func (f *fakeCompletion) Complete(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.out, f.err
}

func TestExtractParsesCompletion(t *testing.T) {
	fc := &fakeCompletion{out: `{"painPoints":["manual reporting"],"interests":[],"budgetMentioned":false,"timelineMentioned":false,"decisionMakerConfirmed":null}`}
	ex := NewExtractor(fc, model.ResponsePromptConfig{BusinessName: "Acme"})

	out := ex.Extract(context.Background(), "our reporting is manual", model.QualificationProfile{Interests: model.Set{"api"}})

	if len(out.PainPoints) != 1 || out.PainPoints[0] != "manual reporting" {
		t.Fatalf("unexpected pain points %v", out.PainPoints)
	}
	if fc.user != "our reporting is manual" {
		t.Fatalf("expected raw text as user message, got %q", fc.user)
	}
	if !strings.Contains(fc.system, `"interests":["api"]`) {
		t.Fatalf("expected profile snapshot in instruction, got %q", fc.system)
	}
}

func TestExtractDegradesOnFailure(t *testing.T) {
	for name, fc := range map[string]*fakeCompletion{
		"completion error": {err: errors.New("boom")},
		"garbage output":   {out: "sorry, I can't help with that"},
	} {
		t.Run(name, func(t *testing.T) {
			out := NewExtractor(fc, model.ResponsePromptConfig{}).Extract(context.Background(), "hi", model.QualificationProfile{})
			if !out.Empty() {
				t.Fatalf("expected empty delta, got %+v", out)
			}
			if _, ok := out.ParsingMetadata["parsing_errors"]; !ok {
				t.Fatalf("expected parsing errors to be recorded")
			}
		})
	}
}
