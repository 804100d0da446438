package brain

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const claudeDefaultModel = "claude-3-5-haiku-latest"

// Claude drives the Anthropic Messages API.
type Claude struct {
	client anthropic.Client
}

// NewClaude creates the Anthropic backend.
func NewClaude(apiKey string) *Claude {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Claude{client: anthropic.NewClient(opts...)}
}

func (c *Claude) Kind() Kind { return KindClaude }

func (c *Claude) DefaultParams() Params {
	return Params{
		Model:             claudeDefaultModel,
		MaxTokens:         512,
		StripStageActions: true,
	}
}

func (c *Claude) Chat(ctx context.Context, params Params, messages []ChatMessage) (*Reply, error) {
	text, err := c.complete(ctx, params, chatSystemPrompt(params.SystemPrompt), messages)
	if err != nil {
		return nil, err
	}
	return &Reply{Content: Postprocess(text, params.StripStageActions)}, nil
}

func (c *Claude) BattleTurn(ctx context.Context, params Params, scenario string, characters []Character, log []TurnEvent) (*BattleOutput, error) {
	if params.MaxTokens < arenaMinTokens {
		params.MaxTokens = arenaMinTokens
	}
	text, err := c.complete(ctx, params, arenaSystemPrompt(scenario, characters), arenaMessages(log))
	if err != nil {
		return nil, err
	}
	return ParseBattleOutput(text)
}

func (c *Claude) GenerateScenario(ctx context.Context, characters []Character) (string, error) {
	params := c.DefaultParams()
	return c.complete(ctx, params, scenarioPrompt, scenarioMessages(characters))
}

// complete issues one Messages API call and returns the raw text.
func (c *Claude) complete(ctx context.Context, params Params, system string, messages []ChatMessage) (string, error) {
	// Anthropic requires the conversation to open with a user turn.
	messages = dropLeadingAssistant(messages)

	apiMessages := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			apiMessages = append(apiMessages, anthropic.NewAssistantMessage(block))
		} else {
			apiMessages = append(apiMessages, anthropic.NewUserMessage(block))
		}
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(params.Model),
		MaxTokens: int64(params.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  apiMessages,
	})
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return "", newBackendError(KindClaude, apierr.StatusCode, string(apierr.DumpResponse(true)), err)
		}
		return "", newBackendError(KindClaude, 0, err.Error(), err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.AsText().Text, nil
		}
	}
	return "", newBackendError(KindClaude, 0, "response contained no text block", nil)
}
