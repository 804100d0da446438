package brain

import "fmt"

// Kind selects one of the fixed set of backends. The set is closed on
// purpose: instances record the kind at creation time and it must stay
// decodable forever.
type Kind string

const (
	KindClaude    Kind = "claude"
	KindGPT       Kind = "gpt"
	KindGPTMini   Kind = "gpt-mini"
	KindGemini    Kind = "gemini"
	KindCohere    Kind = "cohere"
	KindFinetuned Kind = "finetuned"
)

// Kinds lists every valid backend kind.
func Kinds() []Kind {
	return []Kind{KindClaude, KindGPT, KindGPTMini, KindGemini, KindCohere, KindFinetuned}
}

// ParseKind validates a stored kind string.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("brain: unknown kind %q", s)
}

// ExtraPricePerReply is the per-reply credit surcharge a kind adds on top of
// the agent's base price.
func (k Kind) ExtraPricePerReply() int64 {
	switch k {
	case KindGPT:
		return 2
	case KindGemini:
		return 1
	case KindFinetuned:
		return 3
	default:
		return 0
	}
}

func (k Kind) String() string { return string(k) }

// Credentials carries the per-vendor API keys used to construct backends.
type Credentials struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string
	CohereAPIKey    string
}

// New constructs the backend for kind. Every returned backend implements
// ArenaBrain.
func New(kind Kind, creds Credentials) (ArenaBrain, error) {
	switch kind {
	case KindClaude:
		return NewClaude(creds.AnthropicAPIKey), nil
	case KindGPT:
		return NewOpenAI(openAIModelGPT, creds.OpenAIAPIKey), nil
	case KindGPTMini:
		return NewOpenAI(openAIModelGPTMini, creds.OpenAIAPIKey), nil
	case KindGemini:
		return NewGemini(creds.GeminiAPIKey), nil
	case KindCohere:
		return NewCohere(creds.CohereAPIKey), nil
	case KindFinetuned:
		return NewOpenAI(openAIModelFinetuned, creds.OpenAIAPIKey), nil
	default:
		return nil, fmt.Errorf("brain: unknown kind %q", kind)
	}
}
