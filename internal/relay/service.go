package relay

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/antoniostano/novachat/internal/chat"
	"github.com/antoniostano/novachat/internal/ratelimit"
	"github.com/antoniostano/novachat/internal/store"
)

const noMemoriesReply = "I don't have any saved memories for you."

// ServiceConfig tunes the relay service. Zero fields get defaults.
type ServiceConfig struct {
	DefaultModel string
	DailyLimit   int
	Window       time.Duration
}

// Prompt is one inbound chat message resolved to its session and, when the
// caller is signed in, its user.
type Prompt struct {
	SessionID string
	UserID    string
	Message   string
}

// Service runs a chat request end to end: memory side-channel, sliding-window
// rate limit, model selection, the responder call, and turn persistence.
type Service struct {
	responder Responder
	sessions  store.SessionStore
	users     store.UserStore
	prefs     store.PrefStore

	defaultModel string
	dailyLimit   int
	window       time.Duration

	now func() time.Time
}

func NewService(responder Responder, sessions store.SessionStore, users store.UserStore, prefs store.PrefStore, cfg ServiceConfig) *Service {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-3.5-turbo"
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 200
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	return &Service{
		responder:    responder,
		sessions:     sessions,
		users:        users,
		prefs:        prefs,
		defaultModel: cfg.DefaultModel,
		dailyLimit:   cfg.DailyLimit,
		window:       cfg.Window,
		now:          time.Now,
	}
}

// Respond produces the assistant's full reply for a prompt and persists both
// turns.
func (s *Service) Respond(ctx context.Context, p Prompt) (string, error) {
	return s.respond(ctx, p, nil, false)
}

// StreamRespond produces the reply incrementally through onDelta, returning
// the accumulated full text. A caller that stops consuming mid-stream still
// gets the partial reply persisted.
func (s *Service) StreamRespond(ctx context.Context, p Prompt, onDelta DeltaHandler) (string, error) {
	return s.respond(ctx, p, onDelta, true)
}

func (s *Service) respond(ctx context.Context, p Prompt, onDelta DeltaHandler, incremental bool) (string, error) {
	history, err := s.sessions.History(ctx, p.SessionID)
	if err != nil {
		log.Printf("relay: loading session %s history: %v", p.SessionID, err)
		history = nil
	}

	// The memory side-channel runs before the rate check: remembered facts
	// and recalls never consume the daily budget and never touch upstream.
	if reply, handled := s.sideChannel(ctx, p); handled {
		if incremental {
			if err := EmitSliced(ctx, reply, onDelta); err != nil {
				log.Printf("relay: side-channel stream cut short: %v", err)
			}
		}
		s.persist(ctx, p.SessionID, append(history,
			chat.Turn{Role: chat.RoleUser, Content: p.Message},
			chat.Turn{Role: chat.RoleAssistant, Content: reply},
		))
		return reply, nil
	}

	// Rate limit before mutating any persisted state, so a rejected request
	// leaves no trace in the session history.
	model, err := s.reserveRequest(ctx, p.SessionID)
	if err != nil {
		return "", err
	}

	history = append(history, chat.Turn{Role: chat.RoleUser, Content: p.Message})
	s.persist(ctx, p.SessionID, history)

	req := Request{SessionID: p.SessionID, Model: model, Turns: history}
	var reply string
	if incremental {
		reply, err = s.responder.StreamReply(ctx, req, onDelta)
	} else {
		reply, err = s.responder.Reply(ctx, req)
	}
	if err != nil {
		return "", err
	}

	s.persist(ctx, p.SessionID, append(history, chat.Turn{Role: chat.RoleAssistant, Content: reply}))
	return reply, nil
}

// sideChannel evaluates the remember/recall intents for signed-in users.
// Store failures are logged and read as "no match" so the message falls
// through to the normal completion path.
func (s *Service) sideChannel(ctx context.Context, p Prompt) (string, bool) {
	if p.UserID == "" {
		return "", false
	}

	intent := chat.Classify(p.Message)
	switch intent.Kind {
	case chat.IntentRemember:
		u, err := s.users.Get(ctx, p.UserID)
		if err != nil {
			log.Printf("relay: memory handling error: %v", err)
			return "", false
		}
		u.Memory = append(u.Memory, intent.Memory)
		if err := s.users.Put(ctx, u); err != nil {
			log.Printf("relay: memory handling error: %v", err)
			return "", false
		}
		return fmt.Sprintf("Okay — I'll remember: \"%s\"", intent.Memory), true

	case chat.IntentRecall:
		u, err := s.users.Get(ctx, p.UserID)
		if err != nil {
			log.Printf("relay: memory handling error: %v", err)
			return "", false
		}
		if len(u.Memory) == 0 {
			return noMemoriesReply, true
		}
		items := make([]string, 0, len(u.Memory))
		for i, m := range u.Memory {
			items = append(items, fmt.Sprintf("(%d) %s", i+1, m))
		}
		return "I remember: " + strings.Join(items, "\n"), true
	}
	return "", false
}

// reserveRequest prunes the session's request window, rejects when the limit
// is reached, and otherwise records the request and returns the model to use.
// The pruned list is what gets persisted, both here and on the model lookup.
func (s *Service) reserveRequest(ctx context.Context, sessionID string) (string, error) {
	pref, err := s.prefs.Get(ctx, sessionID)
	if err != nil {
		log.Printf("relay: loading prefs for %s: %v", sessionID, err)
		pref = store.Prefs{}
	}

	now := s.now()
	pref.Requests = ratelimit.Prune(pref.Requests, now, s.window)
	if !ratelimit.Allowed(pref.Requests, s.dailyLimit) {
		return "", ErrRateLimited
	}
	pref.Requests = append(pref.Requests, now.UnixMilli())
	if err := s.prefs.Put(ctx, sessionID, pref); err != nil {
		log.Printf("relay: persisting request window for %s: %v", sessionID, err)
	}

	model := pref.Model
	if model == "" {
		model = s.defaultModel
	}
	return model, nil
}

// persist writes the session history best-effort: a reply that was already
// produced is never failed because the store write broke.
func (s *Service) persist(ctx context.Context, sessionID string, turns []chat.Turn) {
	if err := s.sessions.SetHistory(ctx, sessionID, turns); err != nil {
		log.Printf("relay: persisting session %s: %v", sessionID, err)
	}
}
