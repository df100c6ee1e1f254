// Package relay produces assistant replies: it forwards the accumulated
// conversation to an upstream chat-completion API (or a canned responder) and
// supports both full and incremental delivery.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/antoniostano/novachat/internal/chat"
)

// Request carries the conversation handed to a responder. Turns include the
// just-appended user turn.
type Request struct {
	SessionID string
	Model     string
	Turns     []chat.Turn
}

// DeltaHandler receives streaming text fragments in arrival order. Returning
// an error stops the stream; the accumulated partial reply is still returned
// so the caller can persist it.
type DeltaHandler func(delta string) error

// Responder produces one assistant reply for a conversation, either as a
// complete value or incrementally through a DeltaHandler. StreamReply returns
// the full accumulated text in addition to emitting fragments.
type Responder interface {
	Reply(ctx context.Context, req Request) (string, error)
	StreamReply(ctx context.Context, req Request, onDelta DeltaHandler) (string, error)
}

// ErrRateLimited is returned when a session exhausts its daily request
// window before any upstream or fallback work happens.
var ErrRateLimited = errors.New("session daily limit reached")

// UpstreamError reports a non-success response from the completion API. Body
// is captured best-effort.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

const (
	// sliceRunes and sliceDelay shape the synthesized stream used when a
	// reply is produced locally (fallback responder, side-channel replies):
	// the text goes out in fixed-size slices with a short pause so the
	// client exercises the same incremental code path as a real stream.
	sliceRunes = 40
	sliceDelay = 30 * time.Millisecond
)

// EmitSliced delivers text through onDelta in fixed-size rune slices,
// preserving order. Concatenating the slices reproduces text byte for byte.
func EmitSliced(ctx context.Context, text string, onDelta DeltaHandler) error {
	if onDelta == nil {
		return nil
	}
	runes := []rune(text)
	for i := 0; i < len(runes); i += sliceRunes {
		end := i + sliceRunes
		if end > len(runes) {
			end = len(runes)
		}
		if err := onDelta(string(runes[i:end])); err != nil {
			return err
		}
		if end < len(runes) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sliceDelay):
			}
		}
	}
	return nil
}
