package telegraph

import (
	"strings"
	"testing"
)

func TestSplitMessage(t *testing.T) {
	if got := SplitMessage(""); got != nil {
		t.Errorf("empty input should yield no chunks, got %v", got)
	}

	if got := SplitMessage("short"); len(got) != 1 || got[0] != "short" {
		t.Errorf("got %v", got)
	}

	long := strings.Repeat("line of battle narration\n", 200)
	chunks := SplitMessage(long)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > maxMessageLen {
			t.Errorf("chunk %d length %d exceeds limit", i, len(c))
		}
		if c == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplitMessage_NoNewlines(t *testing.T) {
	long := strings.Repeat("x", maxMessageLen+10)
	chunks := SplitMessage(long)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if len(chunks[0]) != maxMessageLen {
		t.Errorf("first chunk length = %d", len(chunks[0]))
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("hello world", 8); got != "hello..." {
		t.Errorf("got %q", got)
	}
	if got := Truncate("abcdef", 2); got != "ab" {
		t.Errorf("got %q", got)
	}
}
