package chat

import (
	"regexp"
	"strings"
)

// IntentKind tags what an inbound message is asking for.
type IntentKind int

const (
	// IntentChat is the default: the message goes to the normal completion path.
	IntentChat IntentKind = iota
	// IntentRemember asks the assistant to store a fact in the user's memory.
	IntentRemember
	// IntentRecall asks the assistant to list stored memories.
	IntentRecall
)

// Intent is the classified form of an inbound message.
type Intent struct {
	Kind IntentKind
	// Memory holds the captured text for IntentRemember.
	Memory string
}

var (
	rememberPattern = regexp.MustCompile(`(?i)^remember\s+(.+)`)
	recallPattern   = regexp.MustCompile(`(?i)(what do you remember|what do you recall|remember what)`)
)

// Classify maps a message to a tagged intent. "remember <text>" is anchored at
// the start of the trimmed message; recall phrases match anywhere.
func Classify(message string) Intent {
	trimmed := strings.TrimSpace(message)
	if m := rememberPattern.FindStringSubmatch(trimmed); m != nil {
		return Intent{Kind: IntentRemember, Memory: strings.TrimSpace(m[1])}
	}
	if recallPattern.MatchString(message) {
		return Intent{Kind: IntentRecall}
	}
	return Intent{Kind: IntentChat}
}
