package telegraph

import "strings"

// Color constants for embed severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// maxMessageLen is Discord's hard limit on message content.
const maxMessageLen = 2000

// SplitMessage chunks text into platform-sized messages, breaking on
// newlines where possible. Empty input yields no chunks.
func SplitMessage(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	for len(text) > maxMessageLen {
		cut := strings.LastIndexByte(text[:maxMessageLen], '\n')
		if cut <= 0 {
			cut = maxMessageLen
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// Truncate shortens text to at most n bytes, marking the cut.
func Truncate(text string, n int) string {
	if len(text) <= n {
		return text
	}
	if n <= 3 {
		return text[:n]
	}
	return text[:n-3] + "..."
}
