// Package signals extracts qualification signals from customer messages.
package signals

import (
	"context"
	"time"

	"github.com/Chative-lead-agent/server/internal/agent/graph/parsers"
	"github.com/Chative-lead-agent/server/internal/agent/graph/prompts"
	"github.com/Chative-lead-agent/server/internal/agent/model"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

// Extractor asks the completion capability for a signal payload and parses it leniently.
type Extractor struct {
	completion model.TextCompletion
	prompt     model.ResponsePromptConfig
}

func NewExtractor(completion model.TextCompletion, prompt model.ResponsePromptConfig) *Extractor {
	return &Extractor{completion: completion, prompt: prompt}
}

// Extract never fails. Any problem on the way yields the empty delta.
func (e *Extractor) Extract(ctx context.Context, text string, profile model.QualificationProfile) model.Extraction {
	log := logx.Ctx(ctx)
	started := time.Now()

	system, err := prompts.RenderExtractionSystem(ctx, e.prompt, profile)
	if err != nil {
		log.Error().Err(err).Str("component", "signal_extractor").Msg("render extraction prompt")
		return failed("prompt_render")
	}

	raw, err := e.completion.Complete(ctx, system, text)
	if err != nil {
		log.Warn().Err(err).
			Str("component", "signal_extractor").
			Dur("latency", time.Since(started)).
			Msg("extraction completion failed; using empty delta")
		return failed("completion_failed")
	}

	out := parsers.ParseSignals(raw)
	ev := log.Debug().
		Str("component", "signal_extractor").
		Dur("latency", time.Since(started)).
		Int("pain_points", len(out.PainPoints)).
		Int("interests", len(out.Interests)).
		Bool("budget", out.BudgetMentioned).
		Bool("timeline", out.TimelineMentioned).
		Str("decision_maker", out.DecisionMaker.String())
	if errs, ok := out.ParsingMetadata["parsing_errors"]; ok {
		ev = ev.Interface("parsing_errors", errs)
	}
	ev.Msg("signals extracted")
	return out
}

func failed(reason string) model.Extraction {
	out := parsers.ParseSignals("")
	out.ParsingMetadata["parsing_errors"] = []string{reason}
	return out
}
