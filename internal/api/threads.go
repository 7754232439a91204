package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/matheus3301/wppdesk/internal/messages"
	"go.uber.org/zap"
)

// handleOpenThread makes the chat current and returns its snapshot. A
// fetch failure is reported inside the snapshot.
func (h *Handler) handleOpenThread(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	chatID := chi.URLParam(r, "chatID")
	if session == "" || chatID == "" {
		respondError(w, http.StatusBadRequest, "session and chat are required")
		return
	}
	if err := h.thread.Switch(r.Context(), session, chatID); err != nil {
		h.logger.Debug("thread open failed", zap.String("chat_id", chatID), zap.Error(err))
	}
	respondJSON(w, http.StatusOK, h.thread.Snapshot())
}

func (h *Handler) handleThreadMore(w http.ResponseWriter, r *http.Request) {
	h.threadAction(w, h.thread.LoadMore(r.Context()))
}

func (h *Handler) handleThreadRefresh(w http.ResponseWriter, r *http.Request) {
	h.threadAction(w, h.thread.Refresh(r.Context()))
}

func (h *Handler) threadAction(w http.ResponseWriter, err error) {
	if errors.Is(err, messages.ErrNoChat) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Debug("thread action failed", zap.Error(err))
	}
	respondJSON(w, http.StatusOK, h.thread.Snapshot())
}
