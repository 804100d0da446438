package brain

import "testing"

func TestStripStageActions(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"asterisks", "*grins widely* Hello there", "Hello there"},
		{"underscores", "_waves slowly_ hi", "hi"},
		{"mixed", "*nods* Sure _smiles_", "Sure"},
		{"none", "plain reply", "plain reply"},
		{"whitespace trimmed", "  *sighs*  fine  ", "fine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripStageActions(tt.in); got != tt.want {
				t.Errorf("StripStageActions(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPostprocess_ControlTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"await exact", "<AWAIT>", AwaitToken},
		{"await lowercase", "<await>", AwaitToken},
		{"await embedded", "I think I'll just <Await> for now.", AwaitToken},
		{"exit exact", "<EXIT>", ExitToken},
		{"exit embedded", "Goodbye everyone! <exit>", ExitToken},
		{"await wins over exit", "<AWAIT> or maybe <EXIT>", AwaitToken},
		{"plain text untouched", "just a normal reply", "just a normal reply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Postprocess(tt.in, false); got != tt.want {
				t.Errorf("Postprocess(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPostprocess_StripBeforeTokenScan(t *testing.T) {
	// A token hidden inside a stage action survives stripping because the
	// scan runs on the stripped text.
	got := Postprocess("*thinks about leaving* <EXIT>", true)
	if got != ExitToken {
		t.Errorf("got %q, want %q", got, ExitToken)
	}

	got = Postprocess("*waves* see you", true)
	if got != "see you" {
		t.Errorf("got %q, want %q", got, "see you")
	}
}
