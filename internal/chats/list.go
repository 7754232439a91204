// Package chats aggregates the chat lists of every gateway session into one
// paginated list with read-state counters.
package chats

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/gateway"
	"github.com/matheus3301/wppdesk/internal/status"
	"go.uber.org/zap"
)

// ErrUnknownChat is returned when an operation names a chat that is not in
// the loaded list.
var ErrUnknownChat = errors.New("chat not loaded")

// Gateway is what the list needs from the gateway client.
type Gateway interface {
	SessionLister
	Overviewer
	MarkRead(ctx context.Context, session, chatID string) error
	MarkUnread(ctx context.Context, session, chatID string) error
}

// Options tunes a List.
type Options struct {
	PageSize    int
	Parallel    int
	SessionTTL  time.Duration
	SettleDelay time.Duration
}

// View is a point-in-time copy of the list state.
type View struct {
	Chats       []Summary    `json:"chats"`
	Loading     bool         `json:"loading"`
	LoadingMore bool         `json:"loadingMore"`
	Err         string       `json:"error,omitempty"`
	HasMore     bool         `json:"hasMore"`
	Counts      Counts       `json:"counts"`
	Offset      int          `json:"offset"`
	State       status.State `json:"state"`
}

// SessionFailure is the payload of bus.ChatsSessionFailed.
type SessionFailure struct {
	Session string `json:"session"`
	Error   string `json:"error"`
}

// Update is the payload of bus.ChatsUpdated.
type Update struct {
	Counts  Counts `json:"counts"`
	HasMore bool   `json:"hasMore"`
}

// List is the aggregated chat list. It is safe for concurrent use.
type List struct {
	gw        Gateway
	discovery *Discovery
	bus       *bus.Bus
	machine   *status.Machine
	logger    *zap.Logger
	opts      Options

	mu          sync.RWMutex
	chats       []Summary
	hasMore     bool
	next        int
	err         error
	loading     bool
	loadingMore bool
	gen         uint64
	timers      map[*time.Timer]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewList creates an empty list.
func NewList(gw Gateway, b *bus.Bus, logger *zap.Logger, opts Options) *List {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &List{
		gw:        gw,
		discovery: NewDiscovery(gw, opts.SessionTTL),
		bus:       b,
		machine:   status.NewMachine(bus.NSChats, b),
		logger:    logger.Named("chats"),
		opts:      opts,
		timers:    make(map[*time.Timer]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Sessions returns the gateway sessions through the discovery cache.
func (l *List) Sessions(ctx context.Context) ([]string, error) {
	return l.discovery.Sessions(ctx)
}

// FetchPage loads one page from every session. A fresh load (appendPage
// false) replaces the list and supersedes any load in flight; an append
// adds the chats not already present and is skipped while another load
// runs.
func (l *List) FetchPage(ctx context.Context, limit, offset int, appendPage bool) error {
	if limit <= 0 {
		limit = l.opts.PageSize
	}
	l.mu.Lock()
	if appendPage {
		if l.loading || l.loadingMore {
			l.mu.Unlock()
			l.logger.Debug("append skipped, load in flight")
			return nil
		}
		l.loadingMore = true
	} else {
		l.gen++
		l.loading = true
		l.loadingMore = false
	}
	gen := l.gen
	l.mu.Unlock()

	return l.run(ctx, gen, limit, offset, appendPage)
}

// LoadMore appends the next page. It does nothing when the last page was
// short or a load is already running.
func (l *List) LoadMore(ctx context.Context) error {
	l.mu.Lock()
	if l.loading || l.loadingMore || !l.hasMore {
		l.mu.Unlock()
		l.logger.Debug("load more skipped")
		return nil
	}
	l.loadingMore = true
	gen, offset := l.gen, l.next
	l.mu.Unlock()

	return l.run(ctx, gen, l.opts.PageSize, offset, true)
}

// Refresh reloads the first page with a fresh session list.
func (l *List) Refresh(ctx context.Context) error {
	l.discovery.Invalidate()
	return l.FetchPage(ctx, l.opts.PageSize, 0, false)
}

func (l *List) run(ctx context.Context, gen uint64, limit, offset int, appendPage bool) error {
	l.transition(status.Loading)

	sessions, err := l.discovery.Sessions(ctx)
	if err != nil {
		l.logger.Error("session enumeration failed", zap.Error(err))
		l.mu.Lock()
		if gen != l.gen {
			l.mu.Unlock()
			return err
		}
		l.chats, l.hasMore, l.next, l.err = nil, false, 0, err
		l.loading, l.loadingMore = false, false
		l.mu.Unlock()
		l.transition(status.Failed)
		l.bus.Emit(bus.ChatsUpdated, Update{})
		return err
	}

	batches := FanOut(ctx, l.gw, sessions, limit, offset, l.opts.Parallel, l.logger)

	var incoming []Summary
	hasMore, failed := false, 0
	for _, b := range batches {
		if b.Err != nil {
			failed++
			l.bus.Emit(bus.ChatsSessionFailed, SessionFailure{Session: b.Session, Error: b.Err.Error()})
			continue
		}
		if b.Received >= limit {
			hasMore = true
		}
		incoming = append(incoming, b.Chats...)
	}

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		l.logger.Debug("stale chat page discarded", zap.Int("offset", offset))
		return nil
	}
	if appendPage {
		l.chats = appendUnique(l.chats, incoming)
		l.loadingMore = false
	} else {
		l.chats = incoming
		l.loading = false
	}
	l.hasMore = hasMore
	l.next = offset + limit
	l.err = nil
	counts := Count(l.chats)
	l.mu.Unlock()

	if failed > 0 {
		l.transition(status.Degraded)
	} else {
		l.transition(status.Ready)
	}
	l.logger.Debug("chat page loaded",
		zap.Int("offset", offset),
		zap.Int("sessions", len(sessions)),
		zap.Int("failed", failed),
		zap.Int("total", counts.Total),
		zap.Bool("has_more", hasMore),
	)
	l.bus.Emit(bus.ChatsUpdated, Update{Counts: counts, HasMore: hasMore})
	return nil
}

// appendUnique appends the chats whose id is not present yet, in order.
func appendUnique(list, incoming []Summary) []Summary {
	seen := make(map[string]bool, len(list)+len(incoming))
	for _, s := range list {
		seen[s.ID] = true
	}
	out := slices.Clip(list)
	for _, s := range incoming {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

// MarkRead marks a chat read on its session, then refreshes the list after
// the settle delay. Failures are logged and returned; no refresh follows.
func (l *List) MarkRead(ctx context.Context, chatID string) error {
	s, ok := l.lookup(chatID)
	if !ok {
		return ErrUnknownChat
	}
	if err := l.gw.MarkRead(ctx, s.SessionID, chatID); err != nil {
		l.logger.Warn("mark read failed", zap.String("chat_id", chatID), zap.String("session", s.SessionID), zap.Error(err))
		return err
	}
	l.scheduleRefresh()
	return nil
}

// MarkUnread flags a chat unread. The gateway may not support it, so any
// failure is reported as false.
func (l *List) MarkUnread(ctx context.Context, chatID string) bool {
	s, ok := l.lookup(chatID)
	if !ok {
		l.logger.Info("mark unread on unknown chat", zap.String("chat_id", chatID))
		return false
	}
	if err := l.gw.MarkUnread(ctx, s.SessionID, chatID); err != nil {
		if errors.Is(err, gateway.ErrUnsupported) {
			l.logger.Info("mark unread not supported by gateway", zap.String("session", s.SessionID))
		} else {
			l.logger.Info("mark unread failed", zap.String("chat_id", chatID), zap.Error(err))
		}
		return false
	}
	l.scheduleRefresh()
	return true
}

// lookup finds a loaded chat by id; with colliding ids the first wins.
func (l *List) lookup(chatID string) (Summary, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := slices.IndexFunc(l.chats, func(s Summary) bool { return s.ID == chatID })
	if i < 0 {
		return Summary{}, false
	}
	return l.chats[i], true
}

func (l *List) scheduleRefresh() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx.Err() != nil {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(l.opts.SettleDelay, func() {
		l.mu.Lock()
		delete(l.timers, t)
		l.mu.Unlock()
		if err := l.Refresh(l.ctx); err != nil && l.ctx.Err() == nil {
			l.logger.Warn("settle refresh failed", zap.Error(err))
		}
	})
	l.timers[t] = struct{}{}
}

// Snapshot returns a copy of the current state.
func (l *List) Snapshot() View {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v := View{
		Chats:       slices.Clone(l.chats),
		Loading:     l.loading,
		LoadingMore: l.loadingMore,
		HasMore:     l.hasMore,
		Counts:      Count(l.chats),
		Offset:      l.next,
		State:       l.machine.Current(),
	}
	if v.Chats == nil {
		v.Chats = []Summary{}
	}
	if l.err != nil {
		v.Err = l.err.Error()
	}
	return v
}

// Close stops pending settle refreshes.
func (l *List) Close() {
	l.cancel()
	l.mu.Lock()
	defer l.mu.Unlock()
	for t := range l.timers {
		t.Stop()
		delete(l.timers, t)
	}
}

func (l *List) transition(to status.State) {
	if err := l.machine.Transition(to); err != nil {
		l.logger.Debug("status transition ignored", zap.Error(err))
	}
}
