package chats

import (
	"bytes"
	"strings"

	"github.com/matheus3301/wppdesk/internal/gateway"
	"github.com/matheus3301/wppdesk/internal/wa"
)

// LastMessage is the preview of the newest message of a chat.
type LastMessage struct {
	ID        string  `json:"id"`
	Body      string  `json:"body"`
	Timestamp int64   `json:"timestamp"`
	FromMe    bool    `json:"fromMe"`
	Kind      wa.Kind `json:"type"`
	HasMedia  bool    `json:"hasMedia"`
	Ack       wa.Ack  `json:"ack"`
	AckKnown  bool    `json:"-"`
}

// Summary is one conversation as last seen from one session.
type Summary struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"sessionId"`
	DisplayName string       `json:"displayName"`
	AvatarURL   string       `json:"avatarUrl,omitempty"`
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
	IsGroup     bool         `json:"isGroup"`
	Unread      bool         `json:"unread"`
	ReadNoReply bool         `json:"readNoReply"`
}

// Counts are the aggregate tallies over the loaded list.
type Counts struct {
	Total       int `json:"total"`
	Unread      int `json:"unread"`
	ReadNoReply int `json:"readNoReply"`
	Groups      int `json:"groups"`
}

// FromRaw builds a Summary from a gateway record, stamping it with the
// session that produced it.
func FromRaw(session string, raw gateway.RawChat) Summary {
	s := Summary{
		ID:          raw.ID,
		SessionID:   session,
		DisplayName: displayName(raw),
		AvatarURL:   raw.Picture,
		LastMessage: lastMessage(raw.LastMessage),
		IsGroup:     wa.IsGroupChat(raw.ID),
	}
	if s.AvatarURL == "" && raw.Contact != nil {
		s.AvatarURL = raw.Contact.ProfilePictureURL
	}
	s.Unread = IsUnread(s)
	s.ReadNoReply = IsReadNoReply(s)
	return s
}

func displayName(raw gateway.RawChat) string {
	if raw.Name != "" {
		return raw.Name
	}
	if c := raw.Contact; c != nil {
		for _, n := range []string{c.Name, c.PushName, c.ShortName, c.Number} {
			if n != "" {
				return n
			}
		}
	}
	user, _, _ := strings.Cut(raw.ID, "@")
	return user
}

func lastMessage(raw []byte) *LastMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	p := wa.Decode(raw)
	m := wa.Normalize(&p, nil)
	_, known := p.Ack()
	return &LastMessage{
		ID:        m.ID,
		Body:      m.Body,
		Timestamp: m.Timestamp,
		FromMe:    m.FromMe,
		Kind:      m.Kind,
		HasMedia:  m.HasMedia,
		Ack:       m.Ack,
		AckKnown:  known,
	}
}

// IsUnread reports whether a chat waits for the operator to open it: the
// last message came from the other side, the gateway reports it delivered
// to this device but not read, and the chat is not a group. Chats without
// ack data are not unread.
func IsUnread(s Summary) bool {
	lm := s.LastMessage
	if lm == nil || lm.FromMe || !lm.AckKnown || s.IsGroup {
		return false
	}
	return lm.Ack == wa.AckDevice
}

// IsReadNoReply reports whether the last message came from the other side
// and was read or played without an answer yet.
func IsReadNoReply(s Summary) bool {
	lm := s.LastMessage
	if lm == nil || lm.FromMe || !lm.AckKnown {
		return false
	}
	return lm.Ack == wa.AckRead || lm.Ack == wa.AckPlayed
}

// Count tallies a list.
func Count(list []Summary) Counts {
	c := Counts{Total: len(list)}
	for _, s := range list {
		if s.Unread {
			c.Unread++
		}
		if s.ReadNoReply {
			c.ReadNoReply++
		}
		if s.IsGroup {
			c.Groups++
		}
	}
	return c
}
