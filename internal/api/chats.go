package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/matheus3301/wppdesk/internal/chats"
	"go.uber.org/zap"
)

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chats.Sessions(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if sessions == nil {
		sessions = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// handleChats returns the list snapshot. ?refresh=1 loads a fresh first
// page before answering.
func (h *Handler) handleChats(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "1" {
		h.refreshChats(r)
	}
	respondJSON(w, http.StatusOK, h.chats.Snapshot())
}

func (h *Handler) handleChatsRefresh(w http.ResponseWriter, r *http.Request) {
	h.refreshChats(r)
	respondJSON(w, http.StatusOK, h.chats.Snapshot())
}

func (h *Handler) refreshChats(r *http.Request) {
	// The failure is part of the snapshot.
	if err := h.chats.Refresh(r.Context()); err != nil {
		h.logger.Debug("chat refresh failed", zap.Error(err))
	}
}

func (h *Handler) handleChatsMore(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.LoadMore(r.Context()); err != nil {
		h.logger.Debug("chat load more failed", zap.Error(err))
	}
	respondJSON(w, http.StatusOK, h.chats.Snapshot())
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	err := h.chats.MarkRead(r.Context(), chatID)
	switch {
	case errors.Is(err, chats.ErrUnknownChat):
		respondError(w, http.StatusNotFound, err.Error())
	case err != nil:
		respondError(w, http.StatusBadGateway, err.Error())
	default:
		respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func (h *Handler) handleMarkUnread(w http.ResponseWriter, r *http.Request) {
	ok := h.chats.MarkUnread(r.Context(), chi.URLParam(r, "chatID"))
	respondJSON(w, http.StatusOK, map[string]bool{"ok": ok})
}
