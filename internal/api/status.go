package api

import (
	"net/http"
	"time"

	"github.com/matheus3301/wppdesk/internal/status"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Profile        string       `json:"profile"`
	UptimeMs       int64        `json:"uptimeMs"`
	Chats          status.State `json:"chats"`
	Messages       status.State `json:"messages"`
	Polling        bool         `json:"polling"`
	ChatCount      int          `json:"chatCount"`
	UnreadCount    int          `json:"unreadCount"`
	PendingReplies int          `json:"pendingReplies"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	list := h.chats.Snapshot()
	resp := StatusResponse{
		Profile:     h.profile,
		UptimeMs:    time.Since(h.startedAt).Milliseconds(),
		Chats:       list.State,
		Messages:    h.thread.Snapshot().State,
		Polling:     h.thread.Polling(),
		ChatCount:   list.Counts.Total,
		UnreadCount: list.Counts.Unread,
	}
	if h.replies != nil {
		resp.PendingReplies = h.replies.Pending()
	}
	respondJSON(w, http.StatusOK, resp)
}
