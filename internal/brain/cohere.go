package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	cohereChatURL      = "https://api.cohere.ai/v1/chat"
	cohereDefaultModel = "command-r"
	cohereMinTokens    = 750
)

// Cohere drives the Cohere v1 chat API. There is no official Go SDK so the
// wire format is spoken directly.
type Cohere struct {
	apiKey  string
	chatURL string
	http    *http.Client
}

// NewCohere creates the Cohere backend.
func NewCohere(apiKey string) *Cohere {
	return &Cohere{
		apiKey:  apiKey,
		chatURL: cohereChatURL,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Cohere) Kind() Kind { return KindCohere }

func (c *Cohere) DefaultParams() Params {
	return Params{
		Model:             cohereDefaultModel,
		MaxTokens:         cohereMinTokens,
		StripStageActions: true,
	}
}

type cohereChatTurn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type cohereChatRequest struct {
	Model            string           `json:"model"`
	Preamble         string           `json:"preamble"`
	ChatHistory      []cohereChatTurn `json:"chat_history"`
	Message          string           `json:"message"`
	MaxTokens        int64            `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	FrequencyPenalty float64          `json:"frequency_penalty"`
}

type cohereChatResponse struct {
	Text string `json:"text"`
}

func (c *Cohere) Chat(ctx context.Context, params Params, messages []ChatMessage) (*Reply, error) {
	text, err := c.complete(ctx, params, chatSystemPrompt(params.SystemPrompt), messages)
	if err != nil {
		return nil, err
	}
	return &Reply{Content: Postprocess(text, params.StripStageActions)}, nil
}

func (c *Cohere) BattleTurn(ctx context.Context, params Params, scenario string, characters []Character, log []TurnEvent) (*BattleOutput, error) {
	if params.MaxTokens < arenaMinTokens {
		params.MaxTokens = arenaMinTokens
	}
	text, err := c.complete(ctx, params, arenaSystemPrompt(scenario, characters), arenaMessages(log))
	if err != nil {
		return nil, err
	}
	return ParseBattleOutput(text)
}

func (c *Cohere) GenerateScenario(ctx context.Context, characters []Character) (string, error) {
	return c.complete(ctx, c.DefaultParams(), scenarioPrompt, scenarioMessages(characters))
}

func (c *Cohere) complete(ctx context.Context, params Params, system string, messages []ChatMessage) (string, error) {
	messages = dropLeadingAssistant(messages)
	if len(messages) == 0 {
		return "", newBackendError(KindCohere, 0, "no user messages to send", nil)
	}

	maxTokens := params.MaxTokens
	if maxTokens < cohereMinTokens {
		maxTokens = cohereMinTokens
	}

	req := cohereChatRequest{
		Model:            params.Model,
		Preamble:         system,
		Message:          messages[len(messages)-1].Content,
		MaxTokens:        int64(maxTokens),
		Temperature:      0.6,
		FrequencyPenalty: 0.15,
	}
	for _, m := range messages[:len(messages)-1] {
		role := "USER"
		if m.Role == RoleAssistant {
			role = "CHATBOT"
		}
		req.ChatHistory = append(req.ChatHistory, cohereChatTurn{Role: role, Message: m.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("brain: encode cohere request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("brain: build cohere request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", newBackendError(KindCohere, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newBackendError(KindCohere, resp.StatusCode, "read response body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newBackendError(KindCohere, resp.StatusCode, string(raw), nil)
	}

	var out cohereChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", newBackendError(KindCohere, resp.StatusCode, string(raw), err)
	}
	if out.Text == "" {
		return "", newBackendError(KindCohere, resp.StatusCode, "response contained no text", nil)
	}
	return out.Text, nil
}
