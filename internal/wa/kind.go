package wa

// Kind is the normalized message type tag.
type Kind string

const (
	KindText        Kind = "text"
	KindImage       Kind = "image"
	KindVideo       Kind = "video"
	KindAudio       Kind = "audio"
	KindDocument    Kind = "document"
	KindLocation    Kind = "location"
	KindContact     Kind = "contact"
	KindCall        Kind = "call"
	KindPoll        Kind = "poll"
	KindMenu        Kind = "menu"
	KindEvent       Kind = "event"
	KindLinkPreview Kind = "link-preview"
)

// Kinds lists every tag Classify can return.
var Kinds = []Kind{
	KindText, KindImage, KindVideo, KindAudio, KindDocument, KindLocation,
	KindContact, KindCall, KindPoll, KindMenu, KindEvent, KindLinkPreview,
}

var placeholders = map[Kind]string{
	KindText:        "Message",
	KindImage:       "Image",
	KindVideo:       "Video",
	KindAudio:       "Audio",
	KindDocument:    "Document",
	KindLocation:    "Location",
	KindContact:     "Contact",
	KindCall:        "Call",
	KindPoll:        "Poll",
	KindMenu:        "Menu",
	KindEvent:       "Event",
	KindLinkPreview: "Link",
}

// Placeholder returns the list-preview label for a message without text.
func Placeholder(k Kind) string {
	if p, ok := placeholders[k]; ok {
		return p
	}
	return placeholders[KindText]
}

// Direction tells whether a message was sent by the connected account.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// DeliveryStatus is the user-facing delivery stage of a message.
type DeliveryStatus string

const (
	StatusSending   DeliveryStatus = "sending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)
