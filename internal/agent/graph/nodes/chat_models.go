package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	errx "github.com/Chative-lead-agent/server/internal/core/error"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey     string
	BaseURL    string
	Extraction *model.ExtractionModelConfig
	Response   *model.ResponseModelConfig
}

// ChatModels holds the extraction and response completions
type ChatModels struct {
	Extraction *Completion
	Response   *Completion
}

// NewChatModels creates both Gemini chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	extraction, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Extraction.Model,
		Temperature: &config.Extraction.Temperature,
		MaxTokens:   &config.Extraction.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(config.Extraction.ThinkingBudget),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating extraction model")
		return nil, fmt.Errorf("error creating extraction model: %w", err)
	}

	response, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Response.Model,
		Temperature: &config.Response.Temperature,
		MaxTokens:   &config.Response.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(config.Response.ThinkingBudget),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	return &ChatModels{
		Extraction: NewCompletion(extraction, config.Extraction.Model, NodeExtractionModel),
		Response:   NewCompletion(response, config.Response.Model, NodeResponseModel),
	}, nil
}

// Completion adapts an Eino chat model to model.TextCompletion and books its
// usage cost onto the running turn.
type Completion struct {
	chat      einomodel.BaseChatModel
	modelName string
	node      string
}

func NewCompletion(chat einomodel.BaseChatModel, modelName, node string) *Completion {
	return &Completion{chat: chat, modelName: modelName, node: node}
}

func (c *Completion) Complete(ctx context.Context, system, user string) (string, error) {
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      c.node,
		Type:      "Gemini",
		Component: components.ComponentOfChatModel,
	})

	out, err := c.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.node, errors.Join(errx.ErrCompletionFailed, err))
	}
	if out == nil {
		return "", errx.ErrEmptyCompletion
	}
	c.recordUsage(ctx, out)

	if strings.TrimSpace(out.Content) == "" {
		return "", errx.ErrEmptyCompletion
	}
	return out.Content, nil
}

func (c *Completion) recordUsage(ctx context.Context, out *schema.Message) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	cost := model.ComputeCost(c.modelName, out.ResponseMeta.Usage)

	var total float64
	// Outside a graph run there is no turn state to book onto.
	_ = compose.ProcessState(ctx, func(_ context.Context, s *model.TurnState) error {
		s.TotalCostUSD += cost.TotalUSD
		total = s.TotalCostUSD
		return nil
	})

	logx.Ctx(ctx).Debug().
		Str("node", c.node).
		Str("model", c.modelName).
		Int("prompt_tokens", cost.PromptTokens).
		Int("completion_tokens", cost.CompletionTokens).
		Int("total_tokens", cost.TotalTokens).
		Float64("input_cost_usd", cost.InputUSD).
		Float64("output_cost_usd", cost.OutputUSD).
		Float64("total_cost_usd", cost.TotalUSD).
		Float64("turn_cost_usd", total).
		Msg("LLM usage")
}

var _ model.TextCompletion = (*Completion)(nil)
