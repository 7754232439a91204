package outbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppdesk/internal/bus"
	"go.uber.org/zap"
)

var (
	// ErrNoSession rejects replies that do not say which session owns the chat.
	ErrNoSession = errors.New("outbox: reply without session")
	ErrNoChat    = errors.New("outbox: reply without chat")
	ErrEmptyText = errors.New("outbox: empty reply")
)

// TextSender is the interface for sending text messages through the gateway.
type TextSender interface {
	SendText(ctx context.Context, session, chatID, text string) (serverMsgID string, err error)
}

// Entry is one queued reply.
type Entry struct {
	ClientMsgID string
	SessionID   string
	ChatID      string
	Text        string
	QueuedAt    time.Time
}

// Sender drains the in-memory outbox and sends each reply through the
// session that owns its chat. Nothing is persisted.
type Sender struct {
	sender TextSender
	bus    *bus.Bus
	logger *zap.Logger
	tick   time.Duration

	mu      sync.Mutex
	pending []Entry
	cancel  context.CancelFunc
}

// NewSender creates a new outbox sender. tick defaults to 500ms.
func NewSender(sender TextSender, b *bus.Bus, logger *zap.Logger, tick time.Duration) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	return &Sender{
		sender: sender,
		bus:    b,
		logger: logger.Named("outbox"),
		tick:   tick,
	}
}

// Enqueue queues a reply and returns its client message id.
func (s *Sender) Enqueue(sessionID, chatID, text string) (string, error) {
	switch {
	case sessionID == "":
		return "", ErrNoSession
	case chatID == "":
		return "", ErrNoChat
	case strings.TrimSpace(text) == "":
		return "", ErrEmptyText
	}
	e := Entry{
		ClientMsgID: uuid.NewString(),
		SessionID:   sessionID,
		ChatID:      chatID,
		Text:        text,
		QueuedAt:    time.Now(),
	}
	s.mu.Lock()
	s.pending = append(s.pending, e)
	s.mu.Unlock()
	return e.ClientMsgID, nil
}

// Pending returns the number of queued replies.
func (s *Sender) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Start begins draining the outbox.
func (s *Sender) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	go s.loop(ctx)
}

// Stop stops the sender loop. Queued replies stay queued.
func (s *Sender) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	for i, entry := range batch {
		if ctx.Err() != nil {
			s.requeue(batch[i:])
			return
		}
		serverMsgID, err := s.sender.SendText(ctx, entry.SessionID, entry.ChatID, entry.Text)
		if err != nil && ctx.Err() != nil {
			// Interrupted by Stop, not a gateway failure.
			s.requeue(batch[i:])
			return
		}
		if err != nil {
			s.logger.Error("failed to send reply", zap.Error(err),
				zap.String("client_msg_id", entry.ClientMsgID),
				zap.String("session", entry.SessionID),
			)
			s.bus.Emit(bus.OutboxSendFailed, map[string]string{
				"client_msg_id": entry.ClientMsgID,
				"chat_id":       entry.ChatID,
				"error":         err.Error(),
			})
			continue
		}

		s.logger.Info("reply sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("server_msg_id", serverMsgID))
		s.bus.Emit(bus.OutboxSendAck, map[string]string{
			"client_msg_id": entry.ClientMsgID,
			"server_msg_id": serverMsgID,
			"chat_id":       entry.ChatID,
		})
	}
}

// requeue puts unsent entries back at the head of the queue.
func (s *Sender) requeue(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(append([]Entry(nil), entries...), s.pending...)
}
