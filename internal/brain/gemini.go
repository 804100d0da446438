package brain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const geminiDefaultModel = "gemini-2.5-flash"

// maxInlineImageBytes bounds attachment downloads forwarded to the model.
const maxInlineImageBytes = 8 << 20

// Gemini drives the Google Generative Language API. It is the only backend
// that consumes inline image attachments.
type Gemini struct {
	apiKey string
}

// NewGemini creates the Gemini backend.
func NewGemini(apiKey string) *Gemini {
	return &Gemini{apiKey: apiKey}
}

func (g *Gemini) Kind() Kind { return KindGemini }

func (g *Gemini) DefaultParams() Params {
	return Params{
		Model:             geminiDefaultModel,
		MaxTokens:         12000,
		StripStageActions: false,
	}
}

func (g *Gemini) Chat(ctx context.Context, params Params, messages []ChatMessage) (*Reply, error) {
	text, err := g.complete(ctx, params, chatSystemPrompt(params.SystemPrompt), messages, false)
	if err != nil {
		return nil, err
	}
	return &Reply{Content: Postprocess(text, params.StripStageActions)}, nil
}

func (g *Gemini) BattleTurn(ctx context.Context, params Params, scenario string, characters []Character, log []TurnEvent) (*BattleOutput, error) {
	if params.MaxTokens < arenaMinTokens {
		params.MaxTokens = arenaMinTokens
	}
	text, err := g.complete(ctx, params, arenaSystemPrompt(scenario, characters), arenaMessages(log), true)
	if err != nil {
		return nil, err
	}
	return ParseBattleOutput(text)
}

func (g *Gemini) GenerateScenario(ctx context.Context, characters []Character) (string, error) {
	return g.complete(ctx, g.DefaultParams(), scenarioPrompt, scenarioMessages(characters), false)
}

// complete issues one generateContent call and returns the raw text.
func (g *Gemini) complete(ctx context.Context, params Params, system string, messages []ChatMessage, jsonMode bool) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", newBackendError(KindGemini, 0, err.Error(), err)
	}
	defer client.Close()

	model := client.GenerativeModel(params.Model)
	model.SetMaxOutputTokens(int32(params.MaxTokens))
	model.SetTemperature(0.8)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
	}
	if jsonMode {
		model.ResponseMIMEType = "application/json"
	}

	// Gemini requires the conversation to open with a user turn.
	messages = dropLeadingAssistant(messages)
	if len(messages) == 0 {
		return "", newBackendError(KindGemini, 0, "no user messages to send", nil)
	}

	last := messages[len(messages)-1]
	chat := model.StartChat()
	for _, m := range messages[:len(messages)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		chat.History = append(chat.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	parts := []genai.Part{genai.Text(last.Content)}
	if last.ImageURL != "" {
		format, data, imgErr := fetchImage(ctx, last.ImageURL)
		if imgErr == nil {
			parts = append(parts, genai.ImageData(format, data))
		}
	}

	resp, err := chat.SendMessage(ctx, parts...)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return "", newBackendError(KindGemini, gerr.Code, gerr.Body, err)
		}
		return "", newBackendError(KindGemini, 0, err.Error(), err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", newBackendError(KindGemini, 0, "response contained no candidates", nil)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", newBackendError(KindGemini, 0, "response contained no text parts", nil)
	}
	return sb.String(), nil
}

// fetchImage downloads an attachment for inline delivery. The returned
// format is the image subtype (e.g. "png").
func fetchImage(ctx context.Context, url string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("brain: build image request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("brain: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("brain: fetch image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxInlineImageBytes))
	if err != nil {
		return "", nil, fmt.Errorf("brain: read image: %w", err)
	}

	format := "png"
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "image/") {
		format = strings.TrimPrefix(ct, "image/")
	}
	return format, data, nil
}
