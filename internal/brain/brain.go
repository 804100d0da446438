// Package brain abstracts the LLM vendors Conjure can drive. Each backend
// normalizes prompt construction, message-role mapping and response
// post-processing behind one contract, so callers never branch per vendor.
package brain

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is the vendor-neutral conversation entry.
type ChatMessage struct {
	Role     Role
	Content  string
	ImageURL string // only honored on the final user message, vendor permitting
}

// Reply is the post-processed assistant response.
type Reply struct {
	Content string
}

// Params are per-call generation parameters. Backends return vendor defaults
// from DefaultParams; callers override SystemPrompt before use.
type Params struct {
	Model             string
	MaxTokens         int
	SystemPrompt      string
	StripStageActions bool
}

// Character is a named arena combatant as the model sees it.
type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Brain is the capability interface implemented by every backend. Backends
// are stateless and safe to share across calls.
type Brain interface {
	Kind() Kind

	// DefaultParams returns the vendor defaults (model id, token ceiling,
	// post-processing flags).
	DefaultParams() Params

	// Chat maps the neutral message list to the vendor wire shape, issues
	// one HTTP call and maps the response back, applying the uniform
	// post-processing (stage-action stripping, control-token
	// canonicalization). It never retries.
	Chat(ctx context.Context, params Params, messages []ChatMessage) (*Reply, error)
}

// ArenaBrain is implemented by backends that can referee arena battles with
// structured output.
type ArenaBrain interface {
	Brain

	// BattleTurn narrates one turn. The response must parse as a
	// BattleOutput; a parse failure is an error, never a silent coercion.
	BattleTurn(ctx context.Context, params Params, scenario string, characters []Character, log []TurnEvent) (*BattleOutput, error)

	// GenerateScenario produces a one-shot battle scenario for the
	// characters.
	GenerateScenario(ctx context.Context, characters []Character) (string, error)
}
