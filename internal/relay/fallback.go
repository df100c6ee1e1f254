package relay

import (
	"context"

	"github.com/antoniostano/novachat/internal/chat"
)

// FallbackResponder produces canned replies when no upstream API is
// configured. Its incremental mode slices the full reply so clients exercise
// the same streaming path, and the final text is byte-identical to the full
// mode's reply for the same input.
type FallbackResponder struct{}

func NewFallbackResponder() *FallbackResponder { return &FallbackResponder{} }

func (r *FallbackResponder) Reply(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return chat.FallbackReply(lastUserContent(req.Turns)), nil
}

func (r *FallbackResponder) StreamReply(ctx context.Context, req Request, onDelta DeltaHandler) (string, error) {
	text, err := r.Reply(ctx, req)
	if err != nil {
		return "", err
	}
	if err := EmitSliced(ctx, text, onDelta); err != nil {
		// Partial delivery still yields the full reply for persistence.
		return text, nil
	}
	return text, nil
}

func lastUserContent(turns []chat.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == chat.RoleUser {
			return turns[i].Content
		}
	}
	return ""
}
