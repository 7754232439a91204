package api

import (
	"errors"
	"net/http"

	"github.com/matheus3301/wppdesk/internal/outbox"
)

type replyRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

func (h *Handler) handleReply(w http.ResponseWriter, r *http.Request) {
	if h.replies == nil {
		respondError(w, http.StatusServiceUnavailable, "replies unavailable")
		return
	}
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := h.replies.Enqueue(req.Session, req.ChatID, req.Text)
	switch {
	case errors.Is(err, outbox.ErrNoSession), errors.Is(err, outbox.ErrNoChat), errors.Is(err, outbox.ErrEmptyText):
		respondError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondJSON(w, http.StatusAccepted, map[string]string{"clientMsgId": id})
	}
}
