package brain

import (
	"regexp"
	"strings"
)

// Control tokens the model may emit. They are canonicalized so downstream
// logic can do an exact-match check.
const (
	// AwaitToken means the agent wants to wait for more input without
	// replying.
	AwaitToken = "<AWAIT>"
	// ExitToken means the agent wants to end the conversation.
	ExitToken = "<EXIT>"
)

// stageActionRe matches emphasis-delimited stage actions like *grins* or
// _waves slowly_.
var stageActionRe = regexp.MustCompile(`[_*][^_*]+[_*]`)

// StripStageActions removes emphasis-delimited action annotations from a
// reply.
func StripStageActions(text string) string {
	return strings.TrimSpace(stageActionRe.ReplaceAllString(text, ""))
}

// Postprocess applies the uniform reply pipeline: optional stage-action
// stripping, then control-token canonicalization. A token found anywhere in
// the reply, case-insensitively, replaces the entire reply text.
func Postprocess(text string, stripActions bool) string {
	if stripActions {
		text = StripStageActions(text)
	}

	upper := strings.ToUpper(strings.TrimSpace(text))
	if strings.Contains(upper, AwaitToken) {
		return AwaitToken
	}
	if strings.Contains(upper, ExitToken) {
		return ExitToken
	}
	return text
}
