package chat

import "strings"

// FallbackReply is the canned responder used when no upstream completion API
// is configured. It is a pure function of the inbound message so the full and
// incremental delivery paths produce byte-identical text for the same input.
func FallbackReply(message string) string {
	msg := strings.ToLower(strings.TrimSpace(message))
	switch {
	case msg == "":
		return "Hi — I'm Novachat. Say something and I'll reply."
	case strings.Contains(msg, "hello") || strings.Contains(msg, "hi"):
		return "Hello! I'm Novachat — how can I help today?"
	case strings.Contains(msg, "help"):
		return "You can ask me to summarize text, draft messages, or just chat. If you set OPENAI_API_KEY I can do much more."
	case strings.HasSuffix(msg, "?"):
		return "That's a great question — here's a friendly thought: " + message
	default:
		return "Novachat echo: " + message
	}
}
