package brain

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseBattleOutput(t *testing.T) {
	out, err := ParseBattleOutput(`{"tags": ["END"], "output_message": "A lands the final blow.", "consequences": "B is defeated.", "winner": "A"}`)
	if err != nil {
		t.Fatalf("ParseBattleOutput: %v", err)
	}
	if out.Winner != "A" {
		t.Errorf("winner = %q, want %q", out.Winner, "A")
	}
	if len(out.Tags) != 1 || out.Tags[0] != TagEnd {
		t.Errorf("tags = %v, want [END]", out.Tags)
	}
}

func TestParseBattleOutput_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		out  *BattleOutput
	}{
		{"ongoing turn", &BattleOutput{
			Tags:         []string{TagExaggeratedAction},
			Message:      "A connects with a wild haymaker.",
			Consequences: "B staggers back.",
		}},
		{"final turn", &BattleOutput{
			Tags:         []string{TagEnd},
			Message:      "A lands the final blow.",
			Consequences: "B is defeated.",
			Winner:       "A",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(tc.out)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			got, err := ParseBattleOutput(string(raw))
			if err != nil {
				t.Fatalf("ParseBattleOutput: %v", err)
			}
			if !reflect.DeepEqual(got, tc.out) {
				t.Errorf("round trip = %+v, want %+v", got, tc.out)
			}
		})
	}
}

func TestParseBattleOutput_CodeFence(t *testing.T) {
	fenced := "```json\n{\"output_message\": \"m\", \"consequences\": \"c\"}\n```"
	out, err := ParseBattleOutput(fenced)
	if err != nil {
		t.Fatalf("ParseBattleOutput: %v", err)
	}
	if out.Message != "m" || out.Consequences != "c" {
		t.Errorf("got %+v", out)
	}
	if out.Tags == nil {
		t.Error("tags should be normalized to an empty slice")
	}
	if out.Winner != "" {
		t.Errorf("winner = %q, want empty", out.Winner)
	}
}

func TestParseBattleOutput_Malformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"not json", "The battle rages on!"},
		{"unknown field", `{"output_message": "m", "consequences": "c", "mood": "tense"}`},
		{"missing message", `{"consequences": "c"}`},
		{"missing consequences", `{"output_message": "m"}`},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBattleOutput(tt.in)
			if !errors.Is(err, ErrMalformedOutput) {
				t.Errorf("err = %v, want ErrMalformedOutput", err)
			}
		})
	}
}

func TestInvalidBattleOutput(t *testing.T) {
	out := InvalidBattleOutput("no JSON found")
	if out.Consequences != "MALFORMED_INPUT" {
		t.Errorf("consequences = %q", out.Consequences)
	}
	if out.Message != "no JSON found" {
		t.Errorf("message = %q", out.Message)
	}
	if out.Tags == nil {
		t.Error("tags must not be nil")
	}
}

func TestArenaMessages(t *testing.T) {
	log := []TurnEvent{
		InputEvent("Alice", "draws her sword", 72),
		OutputEvent(&BattleOutput{Tags: []string{}, Message: "Steel flashes.", Consequences: "Alice is armed."}),
		ErrorEvent("invalid character after top-level value"),
	}
	messages := arenaMessages(log)
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	if messages[0].Role != RoleUser || !strings.Contains(messages[0].Content, `"luck": 72`) {
		t.Errorf("input message = %+v", messages[0])
	}
	if messages[1].Role != RoleAssistant || !strings.Contains(messages[1].Content, "Steel flashes.") {
		t.Errorf("output message = %+v", messages[1])
	}
	if messages[2].Role != RoleUser || !strings.HasPrefix(messages[2].Content, errorFeedbackPrefix) {
		t.Errorf("error message = %+v", messages[2])
	}
}

func TestDropLeadingAssistant(t *testing.T) {
	messages := []ChatMessage{
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "how are you"},
	}
	got := dropLeadingAssistant(messages)
	if len(got) != 2 || got[0].Role != RoleUser {
		t.Errorf("got %+v", got)
	}
	if len(dropLeadingAssistant(nil)) != 0 {
		t.Error("nil input should stay empty")
	}
}
