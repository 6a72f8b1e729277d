// Package composer writes the agent's reply for the current phase.
package composer

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Chative-lead-agent/server/internal/agent/graph/prompts"
	"github.com/Chative-lead-agent/server/internal/agent/model"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

const (
	ProgressStep       = 10
	MaxProgress        = 100
	DefaultExcerptSize = 200
)

type Composer struct {
	completion model.TextCompletion
	catalog    *prompts.PhaseCatalog
	excerpt    int
}

func New(completion model.TextCompletion, catalog *prompts.PhaseCatalog, excerptSize int) *Composer {
	if excerptSize <= 0 {
		excerptSize = DefaultExcerptSize
	}
	return &Composer{completion: completion, catalog: catalog, excerpt: excerptSize}
}

// Input carries the post-transition view of the conversation.
type Input struct {
	Phase    model.Phase
	Lead     *model.Lead
	State    *model.AgentState
	Text     string
	Snippets []model.KnowledgeSnippet
}

type Reply struct {
	Text     string
	Kind     model.OutboundKind
	Snippets []model.KnowledgeSnippet
}

// Compose renders the phase prompt and asks for a reply. It never fails: a render
// or completion problem yields the canned clarifying reply.
func (c *Composer) Compose(ctx context.Context, in Input) Reply {
	log := logx.Ctx(ctx)
	reply := Reply{Kind: model.OutboundReply, Snippets: Excerpts(in.Snippets, c.excerpt)}

	var objections []string
	if in.State != nil {
		objections = in.State.Progress.ObjectionsRaised
	}
	system, err := c.catalog.Render(ctx, prompts.PhaseInput{
		Phase:      in.Phase,
		Score:      in.Lead.Score,
		Status:     in.Lead.Status,
		Profile:    in.Lead.Profile,
		Objections: objections,
		Knowledge:  KnowledgeContext(in.Snippets),
	})
	if err != nil {
		log.Error().Err(err).Str("component", "composer").Str("phase", in.Phase.String()).Msg("render phase prompt")
		return fallback(reply)
	}

	started := time.Now()
	text, err := c.completion.Complete(ctx, system, in.Text)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		log.Warn().Err(err).
			Str("component", "composer").
			Str("phase", in.Phase.String()).
			Dur("latency", time.Since(started)).
			Msg("reply completion unusable; sending fallback")
		return fallback(reply)
	}

	reply.Text = text
	return reply
}

func fallback(r Reply) Reply {
	r.Text = model.FallbackReply
	r.Kind = model.OutboundFallback
	return r
}

// KnowledgeContext joins snippet contents for the prompt.
func KnowledgeContext(snips []model.KnowledgeSnippet) string {
	parts := make([]string, 0, len(snips))
	for _, s := range snips {
		if c := strings.TrimSpace(s.Content); c != "" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return model.NoKnowledgeContext
	}
	return strings.Join(parts, "\n\n")
}

// Excerpts shortens snippet contents to n runes for storage on the outbound message.
func Excerpts(snips []model.KnowledgeSnippet, n int) []model.KnowledgeSnippet {
	out := make([]model.KnowledgeSnippet, 0, len(snips))
	for _, s := range snips {
		if utf8.RuneCountInString(s.Content) > n {
			s.Content = string([]rune(s.Content)[:n]) + "..."
		}
		out = append(out, s)
	}
	return out
}

// AdvanceProgress moves progress one step and folds this turn's signals into the
// sticky sets and flags.
func AdvanceProgress(p model.ProgressContext, delta model.Extraction) model.ProgressContext {
	p.QualificationProgress += ProgressStep
	if p.QualificationProgress > MaxProgress {
		p.QualificationProgress = MaxProgress
	}
	p.ObjectionsRaised, _ = p.ObjectionsRaised.Union(delta.Objections...)
	p.PainPointsIdentified, _ = p.PainPointsIdentified.Union(delta.PainPoints...)
	p.InterestsExpressed, _ = p.InterestsExpressed.Union(delta.Interests...)
	p.BudgetMentioned = p.BudgetMentioned || delta.BudgetMentioned
	p.TimelineMentioned = p.TimelineMentioned || delta.TimelineMentioned
	p.DecisionMakerConfirmed = p.DecisionMakerConfirmed || delta.DecisionMaker.Known()
	return p
}
