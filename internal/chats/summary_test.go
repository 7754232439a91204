package chats

import (
	"testing"

	"github.com/matheus3301/wppdesk/internal/gateway"
	"github.com/matheus3301/wppdesk/internal/wa"
)

func rawWithLast(id, last string) gateway.RawChat {
	return gateway.RawChat{ID: id, LastMessage: []byte(last)}
}

func TestReadStateClassification(t *testing.T) {
	tests := []struct {
		name        string
		raw         gateway.RawChat
		unread      bool
		readNoReply bool
	}{
		{"delivered inbound", rawWithLast("1@c.us", `{"ack":2}`), true, false},
		{"delivered by name", rawWithLast("1@c.us", `{"ackName":"DEVICE"}`), true, false},
		{"self-sent delivered", rawWithLast("1@c.us", `{"fromMe":true,"ack":2}`), false, false},
		{"self-sent read", rawWithLast("1@c.us", `{"fromMe":true,"ack":3}`), false, false},
		{"sent only", rawWithLast("1@c.us", `{"ack":1}`), false, false},
		{"pending", rawWithLast("1@c.us", `{"ack":0}`), false, false},
		{"error ack", rawWithLast("1@c.us", `{"ack":-1}`), false, false},
		{"no ack data", rawWithLast("1@c.us", `{"body":"hi"}`), false, false},
		{"read", rawWithLast("1@c.us", `{"ack":3}`), false, true},
		{"played", rawWithLast("1@c.us", `{"ack":4}`), false, true},
		{"group delivered", rawWithLast("123-456@g.us", `{"ack":2}`), false, false},
		{"group read", rawWithLast("123-456@g.us", `{"ack":3}`), false, true},
		{"no last message", gateway.RawChat{ID: "1@c.us"}, false, false},
		{"null last message", rawWithLast("1@c.us", `null`), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := FromRaw("s", tt.raw)
			if s.Unread != tt.unread {
				t.Errorf("Unread = %v, want %v", s.Unread, tt.unread)
			}
			if s.ReadNoReply != tt.readNoReply {
				t.Errorf("ReadNoReply = %v, want %v", s.ReadNoReply, tt.readNoReply)
			}
		})
	}
}

func TestSelfSentNeverUnread(t *testing.T) {
	for ack := wa.AckError; ack <= wa.AckPlayed; ack++ {
		s := Summary{ID: "1@c.us", LastMessage: &LastMessage{FromMe: true, Ack: ack, AckKnown: true}}
		if IsUnread(s) {
			t.Errorf("self-sent chat with ack %s counted unread", ack)
		}
	}
}

func TestFromRawFields(t *testing.T) {
	raw := gateway.RawChat{
		ID:          "5511999999999@c.us",
		Contact:     &gateway.RawContact{PushName: "Ana", ProfilePictureURL: "http://p/a.jpg"},
		LastMessage: []byte(`{"id":"m1","timestamp":1700000000,"hasMedia":true,"media":{"mimetype":"image/jpeg"},"ack":2}`),
	}
	s := FromRaw("main", raw)
	if s.DisplayName != "Ana" || s.AvatarURL != "http://p/a.jpg" || s.SessionID != "main" {
		t.Errorf("summary = %+v", s)
	}
	lm := s.LastMessage
	if lm == nil {
		t.Fatal("LastMessage = nil")
	}
	if lm.Kind != wa.KindImage || lm.Body != "Image" || lm.Timestamp != 1700000000000 || !lm.HasMedia {
		t.Errorf("last message = %+v", lm)
	}

	if got := FromRaw("main", gateway.RawChat{ID: "5511@c.us"}).DisplayName; got != "5511" {
		t.Errorf("fallback DisplayName = %q, want 5511", got)
	}
	if got := FromRaw("main", gateway.RawChat{ID: "x@c.us", Name: "Named"}).DisplayName; got != "Named" {
		t.Errorf("DisplayName = %q, want Named", got)
	}
}

func TestCount(t *testing.T) {
	list := []Summary{
		FromRaw("s", rawWithLast("1@c.us", `{"ack":2}`)),
		FromRaw("s", rawWithLast("2@c.us", `{"ack":3}`)),
		FromRaw("s", rawWithLast("3-4@g.us", `{"ack":2}`)),
		FromRaw("s", rawWithLast("5@c.us", `{"fromMe":true}`)),
	}
	want := Counts{Total: 4, Unread: 1, ReadNoReply: 1, Groups: 1}
	if got := Count(list); got != want {
		t.Errorf("Count() = %+v, want %+v", got, want)
	}
}
