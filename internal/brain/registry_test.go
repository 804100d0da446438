package brain

import (
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		if err != nil {
			t.Errorf("ParseKind(%q): %v", k, err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %q", k, got)
		}
	}
	if _, err := ParseKind("llama"); err == nil {
		t.Error("ParseKind should reject unknown kinds")
	}
}

func TestExtraPricePerReply(t *testing.T) {
	tests := []struct {
		kind Kind
		want int64
	}{
		{KindClaude, 0},
		{KindGPT, 2},
		{KindGPTMini, 0},
		{KindGemini, 1},
		{KindCohere, 0},
		{KindFinetuned, 3},
	}
	for _, tt := range tests {
		if got := tt.kind.ExtraPricePerReply(); got != tt.want {
			t.Errorf("%s: surcharge = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestNew_AllKinds(t *testing.T) {
	creds := Credentials{
		AnthropicAPIKey: "k1",
		OpenAIAPIKey:    "k2",
		GeminiAPIKey:    "k3",
		CohereAPIKey:    "k4",
	}
	for _, k := range Kinds() {
		b, err := New(k, creds)
		if err != nil {
			t.Fatalf("New(%q): %v", k, err)
		}
		if b.Kind() != k {
			t.Errorf("New(%q).Kind() = %q", k, b.Kind())
		}
		if p := b.DefaultParams(); p.Model == "" || p.MaxTokens <= 0 {
			t.Errorf("New(%q).DefaultParams() = %+v", k, p)
		}
	}
	if _, err := New("llama", creds); err == nil {
		t.Error("New should reject unknown kinds")
	}
}

func TestBackendError_Truncation(t *testing.T) {
	detail := strings.Repeat("x", 4000)
	err := newBackendError(KindCohere, 500, detail, nil)
	if len(err.Detail) != maxDiagnosticLen {
		t.Errorf("detail length = %d, want %d", len(err.Detail), maxDiagnosticLen)
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("Error() = %q", err.Error())
	}
}
