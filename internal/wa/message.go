package wa

import (
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// Message is a normalized chat message ready for the dashboard.
type Message struct {
	ID        string         `json:"id"`
	Direction Direction      `json:"direction"`
	FromMe    bool           `json:"fromMe"`
	Timestamp int64          `json:"timestamp"`
	Status    DeliveryStatus `json:"status"`
	Ack       Ack            `json:"ack"`
	Body      string         `json:"body"`
	Kind      Kind           `json:"type"`
	HasMedia  bool           `json:"hasMedia"`
	MediaURL  string         `json:"mediaUrl,omitempty"`
	Metadata  Metadata       `json:"metadata,omitempty"`
}

// Normalize builds a Message from a decoded payload. rewrite, when not nil,
// maps the gateway media URL to the address the dashboard should use.
func Normalize(p *Payload, rewrite func(string) string) Message {
	kind, meta := Classify(p)

	body := p.Text()
	if body == "" {
		body = Placeholder(kind)
	}

	ack, _ := p.Ack()
	direction := Inbound
	if p.FromMe() {
		direction = Outbound
	}

	mediaURL := p.MediaURL()
	if mediaURL != "" && rewrite != nil {
		mediaURL = rewrite(mediaURL)
	}

	return Message{
		ID:        p.ID(),
		Direction: direction,
		FromMe:    p.FromMe(),
		Timestamp: p.TimestampMillis(),
		Status:    ack.Status(),
		Ack:       ack,
		Body:      body,
		Kind:      kind,
		HasMedia:  p.HasMedia(),
		MediaURL:  mediaURL,
		Metadata:  meta,
	}
}

// NormalizeAll decodes and normalizes a page of raw records, keeping order.
func NormalizeAll[T ~[]byte](raws []T, rewrite func(string) string) []Message {
	out := make([]Message, 0, len(raws))
	for _, raw := range raws {
		p := Decode(raw)
		out = append(out, Normalize(&p, rewrite))
	}
	return out
}

// IsGroupChat reports whether a chat id belongs to a group.
func IsGroupChat(id string) bool {
	jid, err := types.ParseJID(id)
	if err != nil {
		return strings.HasSuffix(id, "@"+types.GroupServer)
	}
	return jid.Server == types.GroupServer
}
