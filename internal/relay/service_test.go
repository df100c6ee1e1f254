package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/antoniostano/novachat/internal/chat"
	"github.com/antoniostano/novachat/internal/store"
)

// scriptedResponder records requests and returns a fixed reply or error.
type scriptedResponder struct {
	reply   string
	err     error
	calls   int
	lastReq Request
}

func (r *scriptedResponder) Reply(_ context.Context, req Request) (string, error) {
	r.calls++
	r.lastReq = req
	return r.reply, r.err
}

func (r *scriptedResponder) StreamReply(ctx context.Context, req Request, onDelta DeltaHandler) (string, error) {
	r.calls++
	r.lastReq = req
	if r.err != nil {
		return "", r.err
	}
	if onDelta != nil {
		if err := onDelta(r.reply); err != nil {
			return r.reply, nil
		}
	}
	return r.reply, nil
}

type serviceFixture struct {
	svc       *Service
	responder *scriptedResponder
	sessions  *store.InMemorySessionStore
	users     *store.InMemoryUserStore
	prefs     *store.InMemoryPrefStore
}

func newServiceFixture(t *testing.T, cfg ServiceConfig) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		responder: &scriptedResponder{reply: "scripted reply"},
		sessions:  store.NewInMemorySessionStore(),
		users:     store.NewInMemoryUserStore(),
		prefs:     store.NewInMemoryPrefStore(),
	}
	f.svc = NewService(f.responder, f.sessions, f.users, f.prefs, cfg)
	return f
}

func (f *serviceFixture) addUser(t *testing.T, id string, memory ...string) {
	t.Helper()
	err := f.users.Put(context.Background(), store.User{
		ID:        id,
		Username:  "tester",
		CreatedAt: time.Now().UTC(),
		Memory:    memory,
	})
	if err != nil {
		t.Fatalf("seeding user: %v", err)
	}
}

func TestRememberShortCircuits(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ServiceConfig{})
	f.addUser(t, "u-1")

	reply, err := f.svc.Respond(ctx, Prompt{SessionID: "sid", UserID: "u-1", Message: "remember I like tea"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != `Okay — I'll remember: "I like tea"` {
		t.Fatalf("Respond() = %q, want confirmation quoting the memory", reply)
	}
	if f.responder.calls != 0 {
		t.Fatalf("responder called %d times, want 0 for a short-circuit", f.responder.calls)
	}

	u, err := f.users.Get(ctx, "u-1")
	if err != nil {
		t.Fatalf("Get user: %v", err)
	}
	if len(u.Memory) != 1 || u.Memory[0] != "I like tea" {
		t.Fatalf("user memory = %v, want the captured text", u.Memory)
	}

	history, _ := f.sessions.History(ctx, "sid")
	if len(history) != 2 || history[0].Role != chat.RoleUser || history[1].Content != reply {
		t.Fatalf("history = %+v, want user turn plus confirmation turn", history)
	}
}

func TestRecallEnumeratesMemories(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ServiceConfig{})
	f.addUser(t, "u-1", "likes tea", "cat named Mabel")

	reply, err := f.svc.Respond(ctx, Prompt{SessionID: "sid", UserID: "u-1", Message: "what do you remember?"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	want := "I remember: (1) likes tea\n(2) cat named Mabel"
	if reply != want {
		t.Fatalf("Respond() = %q, want %q", reply, want)
	}
	if f.responder.calls != 0 {
		t.Fatalf("responder called %d times, want 0", f.responder.calls)
	}
}

func TestRecallWithNoMemories(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ServiceConfig{})
	f.addUser(t, "u-1")

	reply, err := f.svc.Respond(ctx, Prompt{SessionID: "sid", UserID: "u-1", Message: "what do you recall"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != noMemoriesReply {
		t.Fatalf("Respond() = %q, want %q", reply, noMemoriesReply)
	}
}

func TestRememberUnauthenticatedFallsThrough(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ServiceConfig{})
	f.addUser(t, "u-1")

	reply, err := f.svc.Respond(ctx, Prompt{SessionID: "sid", Message: "remember I like tea"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != "scripted reply" {
		t.Fatalf("Respond() = %q, want the normal completion path", reply)
	}
	if f.responder.calls != 1 {
		t.Fatalf("responder calls = %d, want 1", f.responder.calls)
	}

	u, _ := f.users.Get(ctx, "u-1")
	if len(u.Memory) != 0 {
		t.Fatalf("user memory = %v, want untouched", u.Memory)
	}
}

func TestSideChannelStoreFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ServiceConfig{})
	// UserID points at a record that does not exist, so the side-channel
	// lookup fails; the request must proceed on the normal path.
	reply, err := f.svc.Respond(ctx, Prompt{SessionID: "sid", UserID: "ghost", Message: "remember X"})
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if reply != "scripted reply" || f.responder.calls != 1 {
		t.Fatalf("Respond() = %q (calls %d), want fall-through to responder", reply, f.responder.calls)
	}
}

func TestRateLimitRejectsThirdRequest(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ServiceConfig{DailyLimit: 2})

	for i := 0; i < 2; i++ {
		if _, err := f.svc.Respond(ctx, Prompt{SessionID: "sid", Message: "hey"}); err != nil {
			t.Fatalf("request %d error = %v", i+1, err)
		}
	}

	_, err := f.svc.Respond(ctx, Prompt{SessionID: "sid", Message: "hey again"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("third request error = %v, want ErrRateLimited", err)
	}
	if f.responder.calls != 2 {
		t.Fatalf("responder calls = %d, want 2 (no call after the limit)", f.responder.calls)
	}

	// The rejected request leaves no trace: two full exchanges only.
	history, _ := f.sessions.History(ctx, "sid")
	if len(history) != 4 {
		t.Fatalf("history has %d turns, want 4", len(history))
	}

	// A different session is unaffected.
	if _, err := f.svc.Respond(ctx, Prompt{SessionID: "other", Message: "hey"}); err != nil {
		t.Fatalf("other session error = %v", err)
	}
}

func TestRateWindowPrunedBeforeCountAndPersist(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ServiceConfig{DailyLimit: 2})

	base := time.Unix(1_700_000_000, 0)
	f.svc.now = func() time.Time { return base }

	stale := base.Add(-25 * time.Hour).UnixMilli()
	if err := f.prefs.Put(ctx, "sid", store.Prefs{Requests: []int64{stale, stale, stale}}); err != nil {
		t.Fatalf("seed prefs: %v", err)
	}

	// Three stale entries exceed the limit numerically but are outside the
	// window, so the request goes through.
	if _, err := f.svc.Respond(ctx, Prompt{SessionID: "sid", Message: "hey"}); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	p, _ := f.prefs.Get(ctx, "sid")
	if len(p.Requests) != 1 || p.Requests[0] != base.UnixMilli() {
		t.Fatalf("persisted requests = %v, want pruned list plus current stamp", p.Requests)
	}
}

func TestModelPreferenceOverridesDefault(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ServiceConfig{DefaultModel: "gpt-3.5-turbo"})

	if _, err := f.svc.Respond(ctx, Prompt{SessionID: "sid", Message: "hey"}); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if f.responder.lastReq.Model != "gpt-3.5-turbo" {
		t.Fatalf("model = %q, want the default", f.responder.lastReq.Model)
	}

	if err := f.prefs.Put(ctx, "sid2", store.Prefs{Model: "gpt-4"}); err != nil {
		t.Fatalf("seed prefs: %v", err)
	}
	if _, err := f.svc.Respond(ctx, Prompt{SessionID: "sid2", Message: "hey"}); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if f.responder.lastReq.Model != "gpt-4" {
		t.Fatalf("model = %q, want the session override", f.responder.lastReq.Model)
	}
}

func TestStreamShortCircuitIsSliced(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ServiceConfig{})
	f.addUser(t, "u-1")

	long := strings.Repeat("a very memorable fact ", 6)
	var deltas []string
	reply, err := f.svc.StreamRespond(ctx, Prompt{SessionID: "sid", UserID: "u-1", Message: "remember " + long}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamRespond() error = %v", err)
	}
	if len(deltas) < 2 {
		t.Fatalf("deltas = %d, want the confirmation sliced into several chunks", len(deltas))
	}
	if joined := strings.Join(deltas, ""); joined != reply {
		t.Fatalf("concatenated deltas %q != reply %q", joined, reply)
	}
}

func TestUpstreamErrorKeepsUserTurn(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ServiceConfig{})
	f.responder.err = &UpstreamError{Status: 500, Body: "boom"}

	_, err := f.svc.Respond(ctx, Prompt{SessionID: "sid", Message: "hey"})
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("Respond() error = %v, want *UpstreamError", err)
	}

	history, _ := f.sessions.History(ctx, "sid")
	if len(history) != 1 || history[0].Role != chat.RoleUser {
		t.Fatalf("history = %+v, want only the user turn", history)
	}
}

func TestSessionAccumulatesAcrossRequests(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ServiceConfig{})

	if _, err := f.svc.Respond(ctx, Prompt{SessionID: "sid", Message: "first"}); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if _, err := f.svc.Respond(ctx, Prompt{SessionID: "sid", Message: "second"}); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	// The second upstream request carries the whole conversation.
	if got := len(f.responder.lastReq.Turns); got != 3 {
		t.Fatalf("upstream turns = %d, want 3 (user, assistant, user)", got)
	}

	history, _ := f.sessions.History(ctx, "sid")
	if len(history) != 4 {
		t.Fatalf("history has %d turns, want 4", len(history))
	}
}
