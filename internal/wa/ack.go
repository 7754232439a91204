package wa

import "strings"

// Ack is the gateway acknowledgment level of a message.
type Ack int

const (
	AckError   Ack = -1
	AckPending Ack = 0
	AckServer  Ack = 1
	AckDevice  Ack = 2
	AckRead    Ack = 3
	AckPlayed  Ack = 4
)

var ackNames = map[string]Ack{
	"ERROR":   AckError,
	"PENDING": AckPending,
	"SERVER":  AckServer,
	"DEVICE":  AckDevice,
	"READ":    AckRead,
	"PLAYED":  AckPlayed,
}

// ParseAck resolves the ack level from the numeric field, falling back to
// the ack name. The second result is false when neither is present.
func ParseAck(n Number, name string) (Ack, bool) {
	if n.Valid {
		return Ack(n.Value), true
	}
	if a, ok := ackNames[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return a, true
	}
	return AckPending, false
}

// Status maps an ack level to a delivery status. Errors and pending
// messages are both reported as still sending.
func (a Ack) Status() DeliveryStatus {
	switch {
	case a >= AckRead:
		return StatusRead
	case a == AckDevice:
		return StatusDelivered
	case a == AckServer:
		return StatusSent
	default:
		return StatusSending
	}
}

func (a Ack) String() string {
	for name, v := range ackNames {
		if v == a {
			return name
		}
	}
	return "UNKNOWN"
}
