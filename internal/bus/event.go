package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Namespaces.
const (
	NSChats    = "chats"
	NSMessages = "messages"
	NSOutbox   = "outbox"
)

// SuffixStatusChanged is appended to a namespace for health transitions.
const SuffixStatusChanged = ".status_changed"

const (
	ChatsUpdated          = NSChats + ".updated"
	ChatsStatusChanged    = NSChats + SuffixStatusChanged
	ChatsSessionFailed    = NSChats + ".session_failed"
	MessagesUpdated       = NSMessages + ".updated"
	MessagesStatusPatched = NSMessages + ".status_patched"
	MessagesStatusChanged = NSMessages + SuffixStatusChanged
	OutboxSendAck         = NSOutbox + ".send_ack"
	OutboxSendFailed      = NSOutbox + ".send_failed"
)
