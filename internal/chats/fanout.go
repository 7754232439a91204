package chats

import (
	"context"

	"github.com/matheus3301/wppdesk/internal/gateway"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Overviewer fetches one page of chats for a session.
type Overviewer interface {
	ChatsOverview(ctx context.Context, session string, limit, offset int) ([]gateway.RawChat, error)
}

// Batch is the result of one session's page request.
type Batch struct {
	Session  string
	Chats    []Summary
	Received int // records returned by the gateway, before integrity checks
	Err      error
}

// FanOut requests the same page from every session concurrently and waits
// for all of them. A failing session produces a Batch with Err set and no
// chats; it never cancels its siblings. Results keep the session order.
// parallel bounds the number of in-flight requests; zero means unbounded.
func FanOut(ctx context.Context, ov Overviewer, sessions []string, limit, offset, parallel int, logger *zap.Logger) []Batch {
	if logger == nil {
		logger = zap.NewNop()
	}
	batches := make([]Batch, len(sessions))

	var g errgroup.Group
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, session := range sessions {
		g.Go(func() error {
			batches[i] = fetchSession(ctx, ov, session, limit, offset, logger)
			return nil
		})
	}
	_ = g.Wait()
	return batches
}

func fetchSession(ctx context.Context, ov Overviewer, session string, limit, offset int, logger *zap.Logger) Batch {
	b := Batch{Session: session}
	raws, err := ov.ChatsOverview(ctx, session, limit, offset)
	if err != nil {
		logger.Warn("session chat fetch failed", zap.String("session", session), zap.Error(err))
		b.Err = err
		return b
	}
	b.Received = len(raws)
	b.Chats = make([]Summary, 0, len(raws))
	for _, raw := range raws {
		s := FromRaw(session, raw)
		if s.SessionID == "" {
			logger.Error("chat without session dropped", zap.String("chat_id", s.ID))
			continue
		}
		if s.ID == "" {
			logger.Error("chat without id dropped", zap.String("session", session))
			continue
		}
		b.Chats = append(b.Chats, s)
	}
	return b
}
