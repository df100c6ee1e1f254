package chat

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message in a conversation, tagged with its speaker role.
// A session's history is an ordered, append-only sequence of turns.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
