package brain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// arenaMinTokens is the floor applied to battle-turn calls; the structured
// output does not survive tight token ceilings.
const arenaMinTokens = 1324

// Battle tags the referee may attach to a turn.
const (
	TagExaggeratedAction = "EXAGGERATED_ACTION"
	TagInvalidAction     = "INVALID_ACTION"
	TagOverpoweredAction = "OP_ACTION"
	TagEnd               = "END"
)

// TurnInput is a fighter's action as presented to the model.
type TurnInput struct {
	CharacterName string `json:"character_name"`
	Action        string `json:"action"`
	Luck          int    `json:"luck"` // uniform in [0,100], an input to the model only
}

// BattleOutput is the structured narration the referee must produce every
// turn.
type BattleOutput struct {
	Tags         []string `json:"tags"`
	Message      string   `json:"output_message"`
	Consequences string   `json:"consequences"`
	Winner       string   `json:"winner,omitempty"`
}

// InvalidBattleOutput builds the placeholder output recorded before a retry,
// so the model sees that its previous turn was rejected.
func InvalidBattleOutput(reason string) *BattleOutput {
	return &BattleOutput{
		Tags:         []string{},
		Message:      reason,
		Consequences: "MALFORMED_INPUT",
	}
}

// TurnEvent is one entry in the arena turn log. Exactly one field is set.
// The Error variant exists only transiently between a failed model call and
// its single retry; it never reaches user-facing transcripts.
type TurnEvent struct {
	Input  *TurnInput
	Output *BattleOutput
	Error  string
}

// InputEvent wraps a fighter action as a turn event.
func InputEvent(character, action string, luck int) TurnEvent {
	return TurnEvent{Input: &TurnInput{CharacterName: character, Action: action, Luck: luck}}
}

// OutputEvent wraps a referee narration as a turn event.
func OutputEvent(out *BattleOutput) TurnEvent {
	return TurnEvent{Output: out}
}

// ErrorEvent wraps a model failure as a transient turn event.
func ErrorEvent(message string) TurnEvent {
	return TurnEvent{Error: message}
}

// ParseBattleOutput strictly unmarshals model text into a BattleOutput.
// Markdown code fences are trimmed first; anything else that fails to parse
// surfaces as ErrMalformedOutput.
func ParseBattleOutput(text string) (*BattleOutput, error) {
	cleaned := trimCodeFence(text)

	var out BattleOutput
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if out.Message == "" || out.Consequences == "" {
		return nil, fmt.Errorf("%w: missing output_message or consequences", ErrMalformedOutput)
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	return &out, nil
}

// trimCodeFence removes a surrounding ```/```json fence, which several
// vendors add despite JSON-only instructions.
func trimCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
