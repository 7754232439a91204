// Package api serves the dashboard-facing HTTP API of the daemon.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/chats"
	"github.com/matheus3301/wppdesk/internal/messages"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ChatList is the aggregated chat list.
type ChatList interface {
	Sessions(ctx context.Context) ([]string, error)
	Snapshot() chats.View
	Refresh(ctx context.Context) error
	LoadMore(ctx context.Context) error
	MarkRead(ctx context.Context, chatID string) error
	MarkUnread(ctx context.Context, chatID string) bool
}

// Thread is the open chat.
type Thread interface {
	Switch(ctx context.Context, session, chatID string) error
	Snapshot() messages.View
	LoadMore(ctx context.Context) error
	Refresh(ctx context.Context) error
	Polling() bool
}

// ReplyQueue accepts outgoing replies.
type ReplyQueue interface {
	Enqueue(session, chatID, text string) (string, error)
	Pending() int
}

// Deps are the components the API exposes.
type Deps struct {
	Profile string
	Chats   ChatList
	Thread  Thread
	Replies ReplyQueue
	Bus     *bus.Bus
	// Proxy, when set, is mounted at ProxyPrefix.
	Proxy       http.Handler
	ProxyPrefix string
	Logger      *zap.Logger
}

// Handler holds the HTTP handlers.
type Handler struct {
	profile   string
	chats     ChatList
	thread    Thread
	replies   ReplyQueue
	bus       *bus.Bus
	logger    *zap.Logger
	startedAt time.Time
}

// NewRouter wires HTTP routes to the daemon components.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		profile:   d.Profile,
		chats:     d.Chats,
		thread:    d.Thread,
		replies:   d.Replies,
		bus:       d.Bus,
		logger:    logger.Named("api"),
		startedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Get("/status", h.handleStatus)
		api.Get("/sessions", h.handleSessions)
		api.Get("/events", h.handleEvents)

		api.Route("/chats", func(cr chi.Router) {
			cr.Get("/", h.handleChats)
			cr.Post("/more", h.handleChatsMore)
			cr.Post("/refresh", h.handleChatsRefresh)
			cr.Post("/{chatID}/read", h.handleMarkRead)
			cr.Post("/{chatID}/unread", h.handleMarkUnread)
		})

		api.Route("/threads", func(tr chi.Router) {
			tr.Post("/current/more", h.handleThreadMore)
			tr.Post("/current/refresh", h.handleThreadRefresh)
			tr.Get("/{session}/{chatID}", h.handleOpenThread)
		})

		api.Post("/replies", h.handleReply)
	})

	if d.Proxy != nil && d.ProxyPrefix != "" {
		r.Mount(d.ProxyPrefix, d.Proxy)
	}

	return r
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
