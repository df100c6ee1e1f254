package chat

import (
	"strings"
	"testing"
)

func TestFallbackReply(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"", "Hi — I'm Novachat. Say something and I'll reply."},
		{"   ", "Hi — I'm Novachat. Say something and I'll reply."},
		{"hello there", "Hello! I'm Novachat — how can I help today?"},
		{"HI!", "Hello! I'm Novachat — how can I help today?"},
		{"ping", "Novachat echo: ping"},
	}
	for _, tc := range cases {
		if got := FallbackReply(tc.message); got != tc.want {
			t.Fatalf("FallbackReply(%q) = %q, want %q", tc.message, got, tc.want)
		}
	}
}

func TestFallbackReplyHelpAndQuestion(t *testing.T) {
	if got := FallbackReply("can you help me draft an email"); !strings.Contains(got, "summarize text") {
		t.Fatalf("help reply = %q, want the help text", got)
	}
	if got := FallbackReply("want to play a game?"); !strings.HasPrefix(got, "That's a great question") {
		t.Fatalf("question reply = %q, want the question prefix", got)
	}
	// The original, untrimmed message is echoed back in the question reply.
	if got := FallbackReply("Ready?"); !strings.HasSuffix(got, "Ready?") {
		t.Fatalf("question reply = %q, want original message appended", got)
	}
}
