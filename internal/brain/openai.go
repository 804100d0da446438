package brain

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAI model variants. The finetuned id points at the persona-tuned
// checkpoint and is priced accordingly.
const (
	openAIModelGPT       = "gpt-4o"
	openAIModelGPTMini   = "gpt-4o-mini"
	openAIModelFinetuned = "ft:gpt-4o-2024-08-06:conjure:persona-001"
)

// OpenAI drives the Chat Completions API. It backs the gpt, gpt-mini and
// finetuned kinds.
type OpenAI struct {
	model  string
	client openai.Client
}

// NewOpenAI creates an OpenAI backend for the given model id.
func NewOpenAI(model, apiKey string) *OpenAI {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAI{model: model, client: openai.NewClient(opts...)}
}

func (o *OpenAI) Kind() Kind {
	switch o.model {
	case openAIModelGPTMini:
		return KindGPTMini
	case openAIModelFinetuned:
		return KindFinetuned
	default:
		return KindGPT
	}
}

func (o *OpenAI) DefaultParams() Params {
	return Params{
		Model:             o.model,
		MaxTokens:         1500,
		StripStageActions: true,
	}
}

func (o *OpenAI) Chat(ctx context.Context, params Params, messages []ChatMessage) (*Reply, error) {
	text, err := o.complete(ctx, params, chatSystemPrompt(params.SystemPrompt), messages, false)
	if err != nil {
		return nil, err
	}
	return &Reply{Content: Postprocess(text, params.StripStageActions)}, nil
}

func (o *OpenAI) BattleTurn(ctx context.Context, params Params, scenario string, characters []Character, log []TurnEvent) (*BattleOutput, error) {
	if params.MaxTokens < arenaMinTokens {
		params.MaxTokens = arenaMinTokens
	}
	text, err := o.complete(ctx, params, arenaSystemPrompt(scenario, characters), arenaMessages(log), true)
	if err != nil {
		return nil, err
	}
	return ParseBattleOutput(text)
}

func (o *OpenAI) GenerateScenario(ctx context.Context, characters []Character) (string, error) {
	return o.complete(ctx, o.DefaultParams(), scenarioPrompt, scenarioMessages(characters), false)
}

// complete issues one Chat Completions call and returns the raw text.
// jsonMode forces the json_object response format used by battle turns.
func (o *OpenAI) complete(ctx context.Context, params Params, system string, messages []ChatMessage, jsonMode bool) (string, error) {
	apiMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	apiMessages = append(apiMessages, openai.SystemMessage(system))
	for _, m := range messages {
		if m.Role == RoleAssistant {
			apiMessages = append(apiMessages, openai.AssistantMessage(m.Content))
		} else {
			apiMessages = append(apiMessages, openai.UserMessage(m.Content))
		}
	}

	req := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(params.Model),
		Messages:            apiMessages,
		MaxCompletionTokens: openai.Int(int64(params.MaxTokens)),
		Temperature:         openai.Float(0.8),
	}
	if jsonMode {
		req.Temperature = openai.Float(1.1)
		req.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, req)
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return "", newBackendError(o.Kind(), apierr.StatusCode, string(apierr.DumpResponse(true)), err)
		}
		return "", newBackendError(o.Kind(), 0, err.Error(), err)
	}
	if len(resp.Choices) == 0 {
		return "", newBackendError(o.Kind(), 0, "response contained no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}
