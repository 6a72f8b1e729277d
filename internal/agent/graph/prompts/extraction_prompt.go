package prompts

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-lead-agent/server/internal/agent/model"
)

//go:embed template/extraction_prompt.txt
var extractionSystemPrompt string

// RenderExtractionSystem renders the signal extraction instruction and triggers prompt callbacks.
func RenderExtractionSystem(ctx context.Context, config model.ResponsePromptConfig, profile model.QualificationProfile) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(extractionSystemPrompt),
	)
	vars := map[string]any{
		"BusinessName": config.BusinessName,
		"Profile":      ProfileJSON(profile),
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("extraction prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("extraction prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// ProfileJSON is the compact snapshot embedded in prompts.
func ProfileJSON(p model.QualificationProfile) string {
	if p.PainPoints == nil {
		p.PainPoints = model.Set{}
	}
	if p.Interests == nil {
		p.Interests = model.Set{}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(b)
}
