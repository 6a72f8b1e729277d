package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"gopkg.in/yaml.v3"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

//go:embed template/phases.yaml
var phasesYAML []byte

// PhaseInput is everything a phase template may reference.
type PhaseInput struct {
	Phase      model.Phase
	Score      int
	Status     model.LeadStatus
	Profile    model.QualificationProfile
	Objections []string
	Knowledge  string
}

// PhaseCatalog holds one system prompt template per phase.
type PhaseCatalog struct {
	config    model.ResponsePromptConfig
	templates map[model.Phase]string
}

// LoadPhaseCatalog parses the embedded catalogue and checks every phase has a template.
func LoadPhaseCatalog(config model.ResponsePromptConfig) (*PhaseCatalog, error) {
	return ParsePhaseCatalog(config, phasesYAML)
}

// ParsePhaseCatalog parses a catalogue keyed by phase name.
func ParsePhaseCatalog(config model.ResponsePromptConfig, raw []byte) (*PhaseCatalog, error) {
	var byName map[string]string
	if err := yaml.Unmarshal(raw, &byName); err != nil {
		return nil, fmt.Errorf("parse phase prompts: %w", err)
	}

	templates := make(map[model.Phase]string, len(byName))
	for name, tpl := range byName {
		p, err := model.ParsePhase(name)
		if err != nil {
			return nil, fmt.Errorf("phase prompts: %w", err)
		}
		if strings.TrimSpace(tpl) == "" {
			return nil, fmt.Errorf("phase prompts: %s is empty", p)
		}
		templates[p] = tpl
	}
	for _, p := range model.Phases {
		if _, ok := templates[p]; !ok {
			return nil, fmt.Errorf("phase prompts: missing template for %s", p)
		}
	}
	return &PhaseCatalog{config: config, templates: templates}, nil
}

// Render produces the system prompt for in.Phase through the Eino prompt component.
func (c *PhaseCatalog) Render(ctx context.Context, in PhaseInput) (string, error) {
	raw, ok := c.templates[in.Phase]
	if !ok {
		return "", fmt.Errorf("no prompt for phase %s", in.Phase)
	}

	knowledge := strings.TrimSpace(in.Knowledge)
	if knowledge == "" {
		knowledge = model.NoKnowledgeContext
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(raw),
	)
	vars := map[string]any{
		"BusinessName": c.config.BusinessName,
		"AgentName":    c.config.AgentName,
		"Score":        in.Score,
		"Status":       string(in.Status),
		"Profile":      ProfileJSON(in.Profile),
		"Objections":   strings.Join(in.Objections, ", "),
		"Knowledge":    knowledge,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("phase prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("phase prompt render: empty result")
	}
	return msgs[0].Content, nil
}
