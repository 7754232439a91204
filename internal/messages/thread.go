// Package messages pages through the history of the open chat and keeps
// delivery statuses fresh while it stays open.
package messages

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/status"
	"github.com/matheus3301/wppdesk/internal/wa"
	"go.uber.org/zap"
)

// ErrNoChat is returned when no chat is open.
var ErrNoChat = errors.New("no chat open")

// Fetcher reads one page of raw messages, newest first.
type Fetcher interface {
	ChatMessages(ctx context.Context, session, chatID string, limit, offset int) ([]jsoniter.RawMessage, error)
}

// Options tunes a Thread.
type Options struct {
	FirstPage    int
	NextPage     int
	PollPage     int
	PollInterval time.Duration
	// Rewrite maps gateway media URLs for the dashboard; nil keeps them.
	Rewrite func(string) string
}

func (o *Options) defaults() {
	if o.FirstPage <= 0 {
		o.FirstPage = 5
	}
	if o.NextPage <= 0 {
		o.NextPage = 20
	}
	if o.PollPage <= 0 {
		o.PollPage = o.FirstPage
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
}

// View is a point-in-time copy of the thread state.
type View struct {
	Session       string       `json:"session"`
	ChatID        string       `json:"chatId"`
	Messages      []wa.Message `json:"messages"`
	Loading       bool         `json:"loading"`
	LoadingMore   bool         `json:"loadingMore"`
	Err           string       `json:"error,omitempty"`
	HasMore       bool         `json:"hasMore"`
	TotalEstimate int          `json:"totalEstimate"`
	State         status.State `json:"state"`
}

// StatusPatch is one message whose delivery status changed.
type StatusPatch struct {
	ID     string            `json:"id"`
	Status wa.DeliveryStatus `json:"status"`
}

// Thread holds the messages of the open chat, oldest first.
type Thread struct {
	fetcher Fetcher
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
	opts    Options
	poller  *Poller

	mu          sync.RWMutex
	session     string
	chatID      string
	messages    []wa.Message
	next        int
	hasMore     bool
	err         error
	loading     bool
	loadingMore bool
	gen         uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewThread creates a thread with no chat open.
func NewThread(f Fetcher, b *bus.Bus, logger *zap.Logger, opts Options) *Thread {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	t := &Thread{
		fetcher: f,
		bus:     b,
		machine: status.NewMachine(bus.NSMessages, b),
		logger:  logger.Named("messages"),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}
	t.poller = NewPoller(opts.PollInterval, func(ctx context.Context) {
		if err := t.PollStatuses(ctx); err != nil && ctx.Err() == nil {
			t.logger.Debug("status poll failed", zap.Error(err))
		}
	})
	return t
}

// Open makes a chat current. Switching to a different chat drops all
// paging state of the previous one and restarts status polling. It
// reports whether the chat changed.
func (t *Thread) Open(session, chatID string) bool {
	t.mu.Lock()
	if t.session == session && t.chatID == chatID {
		t.mu.Unlock()
		return false
	}
	t.gen++
	t.session, t.chatID = session, chatID
	t.messages, t.next, t.hasMore, t.err = nil, 0, false, nil
	t.loading, t.loadingMore = false, false
	t.mu.Unlock()

	t.poller.Stop()
	t.transition(status.Idle)
	if chatID != "" && t.ctx.Err() == nil {
		t.poller.Start(t.ctx)
	}
	return true
}

// Switch opens a chat and loads its first page when nothing is loaded yet.
func (t *Thread) Switch(ctx context.Context, session, chatID string) error {
	changed := t.Open(session, chatID)
	t.mu.RLock()
	empty := len(t.messages) == 0 && !t.loading
	t.mu.RUnlock()
	if changed || empty {
		return t.FetchMessages(ctx, 0, false)
	}
	return nil
}

// pageSize is small for the first page and larger afterwards.
func (t *Thread) pageSize(offset int) int {
	if offset == 0 {
		return t.opts.FirstPage
	}
	return t.opts.NextPage
}

// FetchMessages loads one page of the open chat. A fresh load replaces the
// list; an append puts the older page before the loaded messages.
func (t *Thread) FetchMessages(ctx context.Context, offset int, appendPage bool) error {
	t.mu.Lock()
	if t.chatID == "" {
		t.mu.Unlock()
		return ErrNoChat
	}
	if appendPage {
		if t.loading || t.loadingMore {
			t.mu.Unlock()
			t.logger.Debug("append skipped, load in flight")
			return nil
		}
		t.loadingMore = true
	} else {
		t.gen++
		t.loading = true
		t.loadingMore = false
	}
	gen, session, chatID := t.gen, t.session, t.chatID
	t.mu.Unlock()

	return t.run(ctx, gen, session, chatID, offset, appendPage)
}

// LoadMore loads the next older page unless the history is exhausted or a
// load is running.
func (t *Thread) LoadMore(ctx context.Context) error {
	t.mu.Lock()
	if t.chatID == "" {
		t.mu.Unlock()
		return ErrNoChat
	}
	if t.loading || t.loadingMore || !t.hasMore {
		t.mu.Unlock()
		t.logger.Debug("load more skipped")
		return nil
	}
	t.loadingMore = true
	gen, session, chatID, offset := t.gen, t.session, t.chatID, t.next
	t.mu.Unlock()

	return t.run(ctx, gen, session, chatID, offset, true)
}

// Refresh reloads the first page of the open chat.
func (t *Thread) Refresh(ctx context.Context) error {
	return t.FetchMessages(ctx, 0, false)
}

func (t *Thread) run(ctx context.Context, gen uint64, session, chatID string, offset int, appendPage bool) error {
	size := t.pageSize(offset)
	t.transition(status.Loading)

	raws, err := t.fetcher.ChatMessages(ctx, session, chatID, size, offset)

	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		t.logger.Debug("stale message page discarded", zap.String("chat_id", chatID), zap.Int("offset", offset))
		return nil
	}
	if err != nil {
		t.messages, t.hasMore, t.next, t.err = nil, false, 0, err
		t.loading, t.loadingMore = false, false
		t.mu.Unlock()
		t.logger.Warn("message fetch failed", zap.String("chat_id", chatID), zap.String("session", session), zap.Error(err))
		t.transition(status.Failed)
		t.bus.Emit(bus.MessagesUpdated, chatID)
		return err
	}

	page := wa.NormalizeAll(raws, t.opts.Rewrite)
	slices.Reverse(page)
	if appendPage {
		t.messages = prependOlder(page, t.messages)
		t.loadingMore = false
	} else {
		t.messages = page
		t.loading = false
	}
	t.hasMore = len(raws) >= size
	t.next = offset + len(raws)
	t.err = nil
	total := len(t.messages)
	t.mu.Unlock()

	t.transition(status.Ready)
	t.logger.Debug("message page loaded",
		zap.String("chat_id", chatID),
		zap.Int("offset", offset),
		zap.Int("size", size),
		zap.Int("received", len(raws)),
		zap.Int("total", total),
	)
	t.bus.Emit(bus.MessagesUpdated, chatID)
	return nil
}

// prependOlder places an oldest-first page of older messages before the
// loaded ones, skipping ids already loaded.
func prependOlder(older, loaded []wa.Message) []wa.Message {
	seen := make(map[string]bool, len(loaded))
	for _, m := range loaded {
		if m.ID != "" {
			seen[m.ID] = true
		}
	}
	out := make([]wa.Message, 0, len(older)+len(loaded))
	for _, m := range older {
		if m.ID != "" && seen[m.ID] {
			continue
		}
		out = append(out, m)
	}
	return append(out, loaded...)
}

// PollStatuses fetches the newest messages and copies their delivery status
// onto the loaded messages with the same id. The loaded list is patched in
// place; nothing is added or removed.
func (t *Thread) PollStatuses(ctx context.Context) error {
	t.mu.RLock()
	gen, session, chatID := t.gen, t.session, t.chatID
	t.mu.RUnlock()
	if chatID == "" {
		return ErrNoChat
	}

	raws, err := t.fetcher.ChatMessages(ctx, session, chatID, t.opts.PollPage, 0)
	if err != nil {
		return err
	}
	fresh := wa.NormalizeAll(raws, nil)

	var patches []StatusPatch
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return nil
	}
	for _, m := range fresh {
		if m.ID == "" {
			continue
		}
		i := slices.IndexFunc(t.messages, func(old wa.Message) bool { return old.ID == m.ID })
		// Acks only move forward, except to the error level.
		if i < 0 || (m.Ack <= t.messages[i].Ack && m.Ack != wa.AckError) || m.Ack == t.messages[i].Ack {
			continue
		}
		t.messages[i].Ack = m.Ack
		if t.messages[i].Status != m.Status {
			t.messages[i].Status = m.Status
			patches = append(patches, StatusPatch{ID: m.ID, Status: m.Status})
		}
	}
	t.mu.Unlock()

	if len(patches) > 0 {
		t.logger.Debug("statuses patched", zap.String("chat_id", chatID), zap.Int("count", len(patches)))
		t.bus.Emit(bus.MessagesStatusPatched, patches)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (t *Thread) Snapshot() View {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v := View{
		Session:     t.session,
		ChatID:      t.chatID,
		Messages:    slices.Clone(t.messages),
		Loading:     t.loading,
		LoadingMore: t.loadingMore,
		HasMore:     t.hasMore,
		State:       t.machine.Current(),
	}
	if v.Messages == nil {
		v.Messages = []wa.Message{}
	}
	v.TotalEstimate = len(v.Messages)
	if t.hasMore {
		v.TotalEstimate += t.opts.NextPage
	}
	if t.err != nil {
		v.Err = t.err.Error()
	}
	return v
}

// Polling reports whether status polling is active.
func (t *Thread) Polling() bool { return t.poller.Running() }

// Close stops polling. The thread cannot be reopened.
func (t *Thread) Close() {
	t.cancel()
	t.poller.Stop()
}

func (t *Thread) transition(to status.State) {
	if err := t.machine.Transition(to); err != nil {
		t.logger.Debug("status transition ignored", zap.Error(err))
	}
}
