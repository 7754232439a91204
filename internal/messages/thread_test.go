package messages

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/status"
	"github.com/matheus3301/wppdesk/internal/wa"
)

type fetchCall struct {
	session, chatID string
	limit, offset   int
}

// fakeHistory serves a chat of n messages m1 (oldest) .. mN (newest),
// newest first, like the gateway.
type fakeHistory struct {
	mu    sync.Mutex
	n     int
	acks  map[string]int
	err   error
	calls []fetchCall
	block chan struct{}
}

func (f *fakeHistory) ChatMessages(ctx context.Context, session, chatID string, limit, offset int) ([]jsoniter.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{session, chatID, limit, offset})
	block, err := f.block, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []jsoniter.RawMessage
	for i := f.n - offset; i >= 1 && len(out) < limit; i-- {
		id := fmt.Sprintf("m%d", i)
		out = append(out, jsoniter.RawMessage(fmt.Sprintf(`{"id":%q,"body":%q,"timestamp":%d,"ack":%d}`, id, id, 1700000000+i, f.acks[id])))
	}
	return out, nil
}

func (f *fakeHistory) setAck(id string, ack int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acks == nil {
		f.acks = map[string]int{}
	}
	f.acks[id] = ack
}

func (f *fakeHistory) callsSnapshot() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

func ids(msgs []wa.Message) string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return fmt.Sprint(out)
}

func newTestThread(f Fetcher) *Thread {
	// A long interval keeps the background poller out of the way.
	return NewThread(f, bus.New(), nil, Options{PollInterval: time.Hour})
}

func TestPageSizes(t *testing.T) {
	h := &fakeHistory{n: 100}
	th := newTestThread(h)
	defer th.Close()
	ctx := context.Background()

	th.Open("s", "c@c.us")
	if err := th.FetchMessages(ctx, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := th.FetchMessages(ctx, 5, true); err != nil {
		t.Fatal(err)
	}
	calls := h.callsSnapshot()
	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(calls))
	}
	if calls[0].limit != 5 || calls[0].offset != 0 {
		t.Errorf("first call = %+v, want limit 5 offset 0", calls[0])
	}
	if calls[1].limit != 20 || calls[1].offset != 5 {
		t.Errorf("second call = %+v, want limit 20 offset 5", calls[1])
	}
}

func TestReversalAsymmetry(t *testing.T) {
	h := &fakeHistory{n: 24}
	th := newTestThread(h)
	defer th.Close()
	ctx := context.Background()

	th.Open("s", "c@c.us")
	if err := th.FetchMessages(ctx, 0, false); err != nil {
		t.Fatal(err)
	}
	if got := ids(th.Snapshot().Messages); got != "[m20 m21 m22 m23 m24]" {
		t.Errorf("fresh load = %s, want oldest first", got)
	}
	if !th.Snapshot().HasMore {
		t.Fatal("HasMore = false after a full first page")
	}

	if err := th.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}
	v := th.Snapshot()
	for i, m := range v.Messages {
		if want := fmt.Sprintf("m%d", i+1); m.ID != want {
			t.Fatalf("message %d = %s, want %s (full list %s)", i, m.ID, want, ids(v.Messages))
		}
	}
	if len(v.Messages) != 24 {
		t.Errorf("messages = %d, want 24", len(v.Messages))
	}
	if v.HasMore {
		t.Error("HasMore = true after a short page")
	}
	for i := 1; i < len(v.Messages); i++ {
		if v.Messages[i].Timestamp < v.Messages[i-1].Timestamp {
			t.Fatalf("timestamps out of order at %d", i)
		}
	}

	calls := len(h.callsSnapshot())
	if err := th.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}
	if len(h.callsSnapshot()) != calls {
		t.Error("LoadMore fetched after the history was exhausted")
	}
}

func TestTotalEstimate(t *testing.T) {
	h := &fakeHistory{n: 8}
	th := newTestThread(h)
	defer th.Close()
	ctx := context.Background()

	th.Open("s", "c@c.us")
	if err := th.FetchMessages(ctx, 0, false); err != nil {
		t.Fatal(err)
	}
	if got := th.Snapshot().TotalEstimate; got != 25 {
		t.Errorf("TotalEstimate = %d, want 25 while more pages exist", got)
	}
	if err := th.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}
	if got := th.Snapshot().TotalEstimate; got != 8 {
		t.Errorf("TotalEstimate = %d, want 8 at the end", got)
	}
}

func TestChatSwitchResets(t *testing.T) {
	h := &fakeHistory{n: 50}
	th := newTestThread(h)
	defer th.Close()
	ctx := context.Background()

	if err := th.Switch(ctx, "s", "a@c.us"); err != nil {
		t.Fatal(err)
	}
	if err := th.LoadMore(ctx); err != nil {
		t.Fatal(err)
	}
	if err := th.Switch(ctx, "s", "b@c.us"); err != nil {
		t.Fatal(err)
	}

	calls := h.callsSnapshot()
	last := calls[len(calls)-1]
	if last.chatID != "b@c.us" || last.offset != 0 || last.limit != 5 {
		t.Errorf("first request for new chat = %+v, want offset 0 limit 5", last)
	}
	v := th.Snapshot()
	if v.ChatID != "b@c.us" || len(v.Messages) != 5 {
		t.Errorf("after switch: chat %s with %d messages", v.ChatID, len(v.Messages))
	}

	if changed := th.Open("s", "b@c.us"); changed {
		t.Error("reopening the same chat reported a change")
	}
	if err := th.Switch(ctx, "s", "b@c.us"); err != nil {
		t.Fatal(err)
	}
	if len(h.callsSnapshot()) != len(calls) {
		t.Error("Switch to the open chat refetched")
	}
}

func TestFetchFailureClearsMessages(t *testing.T) {
	h := &fakeHistory{n: 10}
	th := newTestThread(h)
	defer th.Close()
	ctx := context.Background()

	th.Open("s", "c@c.us")
	if err := th.FetchMessages(ctx, 0, false); err != nil {
		t.Fatal(err)
	}
	h.mu.Lock()
	h.err = errors.New("gateway 500")
	h.mu.Unlock()

	if err := th.Refresh(ctx); err == nil {
		t.Fatal("Refresh() = nil, want error")
	}
	v := th.Snapshot()
	if len(v.Messages) != 0 || v.Err == "" || v.HasMore || v.Loading {
		t.Errorf("after failure: %d messages, err %q, hasMore %v, loading %v", len(v.Messages), v.Err, v.HasMore, v.Loading)
	}
	if v.State != status.Failed {
		t.Errorf("State = %s, want FAILED", v.State)
	}
}

func TestNoChatOpen(t *testing.T) {
	th := newTestThread(&fakeHistory{})
	defer th.Close()
	if err := th.FetchMessages(context.Background(), 0, false); !errors.Is(err, ErrNoChat) {
		t.Errorf("FetchMessages() = %v, want ErrNoChat", err)
	}
	if err := th.LoadMore(context.Background()); !errors.Is(err, ErrNoChat) {
		t.Errorf("LoadMore() = %v, want ErrNoChat", err)
	}
}

func TestStalePageDiscardedOnSwitch(t *testing.T) {
	h := &fakeHistory{n: 10, block: make(chan struct{})}
	th := newTestThread(h)
	defer th.Close()
	ctx := context.Background()

	th.Open("s", "old@c.us")
	done := make(chan error, 1)
	go func() { done <- th.FetchMessages(ctx, 0, false) }()

	deadline := time.Now().Add(time.Second)
	for len(h.callsSnapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	th.Open("s", "new@c.us")
	close(h.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	v := th.Snapshot()
	if v.ChatID != "new@c.us" || len(v.Messages) != 0 {
		t.Errorf("old chat's page leaked into %s: %s", v.ChatID, ids(v.Messages))
	}
}

func TestPollPatchesStatusInPlace(t *testing.T) {
	h := &fakeHistory{n: 10}
	h.setAck("m10", 1)
	h.setAck("m9", 1)
	b := bus.New()
	events, unsub := b.Subscribe(bus.MessagesStatusPatched, 10)
	defer unsub()
	th := NewThread(h, b, nil, Options{PollInterval: time.Hour})
	defer th.Close()
	ctx := context.Background()

	th.Open("s", "c@c.us")
	if err := th.FetchMessages(ctx, 0, false); err != nil {
		t.Fatal(err)
	}
	th.mu.RLock()
	before := &th.messages[0]
	th.mu.RUnlock()

	h.setAck("m10", 3)
	if err := th.PollStatuses(ctx); err != nil {
		t.Fatal(err)
	}

	v := th.Snapshot()
	if ids(v.Messages) != "[m6 m7 m8 m9 m10]" {
		t.Errorf("poll changed the list: %s", ids(v.Messages))
	}
	if v.Messages[4].Status != wa.StatusRead {
		t.Errorf("m10 status = %s, want read", v.Messages[4].Status)
	}
	if v.Messages[3].Status != wa.StatusSent {
		t.Errorf("m9 status = %s, want sent", v.Messages[3].Status)
	}
	th.mu.RLock()
	same := before == &th.messages[0]
	th.mu.RUnlock()
	if !same {
		t.Error("poll replaced the backing array")
	}

	select {
	case evt := <-events:
		patches := evt.Payload.([]StatusPatch)
		if len(patches) != 1 || patches[0].ID != "m10" {
			t.Errorf("patches = %+v", patches)
		}
	case <-time.After(time.Second):
		t.Error("no status_patched event")
	}

	// Going backwards is ignored.
	h.setAck("m10", 2)
	if err := th.PollStatuses(ctx); err != nil {
		t.Fatal(err)
	}
	if got := th.Snapshot().Messages[4].Status; got != wa.StatusRead {
		t.Errorf("m10 status = %s after a lower ack, want read", got)
	}
}

func TestPollerLifecycle(t *testing.T) {
	var (
		mu    sync.Mutex
		ticks int
	)
	p := NewPoller(5*time.Millisecond, func(ctx context.Context) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})
	p.Start(context.Background())
	if !p.Running() {
		t.Fatal("Running() = false after Start")
	}
	time.Sleep(40 * time.Millisecond)
	p.Stop()
	if p.Running() {
		t.Error("Running() = true after Stop")
	}

	mu.Lock()
	n := ticks
	mu.Unlock()
	if n == 0 {
		t.Fatal("poller never ticked")
	}
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if ticks != n {
		t.Errorf("ticked %d times after Stop", ticks-n)
	}
	p.Stop()
}

func TestPollerConcurrentStart(t *testing.T) {
	var (
		mu    sync.Mutex
		ticks int
	)
	p := NewPoller(time.Millisecond, func(ctx context.Context) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	for round := 0; round < 20; round++ {
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				p.Start(context.Background())
			}()
		}
		close(start)
		wg.Wait()
		p.Stop()

		mu.Lock()
		n := ticks
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		after := ticks
		mu.Unlock()
		if after != n {
			t.Fatalf("round %d: ticked %d times after Stop", round, after-n)
		}
	}
}

func TestLoadMoreInFlightGuard(t *testing.T) {
	h := &fakeHistory{n: 100}
	th := newTestThread(h)
	defer th.Close()
	ctx := context.Background()

	th.Open("s", "c@c.us")
	if err := th.FetchMessages(ctx, 0, false); err != nil {
		t.Fatal(err)
	}

	h.mu.Lock()
	h.block = make(chan struct{})
	h.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- th.LoadMore(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(h.callsSnapshot()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("first LoadMore never reached the gateway")
		}
		time.Sleep(time.Millisecond)
	}

	// Both entry points must skip while the older page is in flight.
	if err := th.LoadMore(ctx); err != nil {
		t.Fatalf("second LoadMore() error = %v", err)
	}
	if err := th.FetchMessages(ctx, 5, true); err != nil {
		t.Fatalf("FetchMessages(append) error = %v", err)
	}

	h.mu.Lock()
	close(h.block)
	h.block = nil
	h.mu.Unlock()
	if err := <-errc; err != nil {
		t.Fatalf("LoadMore() error = %v", err)
	}

	calls := h.callsSnapshot()
	if len(calls) != 2 {
		t.Fatalf("gateway calls = %d, want 2", len(calls))
	}
	if calls[1].offset != 5 || calls[1].limit != 20 {
		t.Errorf("load more call = %+v, want offset 5 limit 20", calls[1])
	}

	view := th.Snapshot()
	if len(view.Messages) != 25 {
		t.Fatalf("messages = %d, want 25", len(view.Messages))
	}
	seen := map[string]bool{}
	for _, m := range view.Messages {
		if seen[m.ID] {
			t.Errorf("message %s appended twice", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestThreadPollsOnlyWhileOpen(t *testing.T) {
	h := &fakeHistory{n: 3}
	th := NewThread(h, nil, nil, Options{PollInterval: 5 * time.Millisecond})
	ctx := context.Background()

	if th.Polling() {
		t.Error("polling before any chat was opened")
	}
	if err := th.Switch(ctx, "s", "c@c.us"); err != nil {
		t.Fatal(err)
	}
	if !th.Polling() {
		t.Error("not polling with a chat open")
	}

	deadline := time.Now().Add(time.Second)
	for len(h.callsSnapshot()) < 3 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if len(h.callsSnapshot()) < 3 {
		t.Error("poller did not fetch")
	}

	th.Close()
	if th.Polling() {
		t.Error("still polling after Close")
	}
	n := len(h.callsSnapshot())
	time.Sleep(20 * time.Millisecond)
	if len(h.callsSnapshot()) != n {
		t.Error("fetches after Close")
	}
}
