package wa

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Shape identifies which variant a decoded Payload holds.
type Shape int

const (
	// ShapeUnknown means the record did not match the known gateway layout;
	// only the fields readable by path lookup are available.
	ShapeUnknown Shape = iota
	// ShapeKnown means every vendor sub-shape was decoded.
	ShapeKnown
)

// Payload is a raw gateway message decoded into one of two variants.
type Payload struct {
	Shape Shape
	env   envelope
	frag  fragment
}

// envelope is the top-level gateway record.
type envelope struct {
	ID        string       `json:"id"`
	Timestamp Number       `json:"timestamp"`
	From      string       `json:"from"`
	FromMe    bool         `json:"fromMe"`
	Body      string       `json:"body"`
	HasMedia  bool         `json:"hasMedia"`
	Media     *rawMedia    `json:"media"`
	MediaURL  string       `json:"mediaUrl"`
	Ack       Number       `json:"ack"`
	AckName   string       `json:"ackName"`
	Location  *rawLocation `json:"location"`
	VCards    []string     `json:"vCards"`
	Data      *vendorData  `json:"_data"`
}

type rawMedia struct {
	URL      string `json:"url"`
	Mimetype string `json:"mimetype"`
	Filename string `json:"filename"`
}

type rawLocation struct {
	Latitude    Float  `json:"latitude"`
	Longitude   Float  `json:"longitude"`
	Name        string `json:"name"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

// vendorData is the engine-specific "_data" object. Browser-engine records
// carry flat hints (type, lat, pollName...); protocol-engine records carry
// the protobuf message under "message" (matched case-insensitively, so the
// capitalised "Message" form decodes too).
type vendorData struct {
	Type               string         `json:"type"`
	MediaType          string         `json:"mediaType"`
	Body               string         `json:"body"`
	Mimetype           string         `json:"mimetype"`
	Filename           string         `json:"filename"`
	Size               Number         `json:"size"`
	Duration           Number         `json:"duration"`
	Lat                Float          `json:"lat"`
	Lng                Float          `json:"lng"`
	Loc                string         `json:"loc"`
	VCardFormattedName string         `json:"vcardFormattedName"`
	PollName           string         `json:"pollName"`
	PollOptions        []webPollOpt   `json:"pollOptions"`
	PollSelectable     Number         `json:"pollSelectableOptionsCount"`
	Message            *vendorMessage `json:"message"`
}

type webPollOpt struct {
	Name string `json:"name"`
}

// vendorMessage enumerates every protobuf message kind the classifier knows.
type vendorMessage struct {
	Conversation string           `json:"conversation"`
	ExtendedText *extendedTextMsg `json:"extendedTextMessage"`
	Image        *mediaMsg        `json:"imageMessage"`
	Video        *mediaMsg        `json:"videoMessage"`
	Audio        *mediaMsg        `json:"audioMessage"`
	Document     *mediaMsg        `json:"documentMessage"`
	Location     *locationMsg     `json:"locationMessage"`
	Contact      *contactMsg      `json:"contactMessage"`
	Poll         *pollMsg         `json:"pollCreationMessage"`
	PollV2       *pollMsg         `json:"pollCreationMessageV2"`
	PollV3       *pollMsg         `json:"pollCreationMessageV3"`
	Event        *eventMsg        `json:"eventMessage"`
	List         *listMsg         `json:"listMessage"`
	Buttons      *buttonsMsg      `json:"buttonsMessage"`
	// The protocol schema spells this field with three s.
	CallLog    *callLogMsg `json:"callLogMesssage"`
	CallLogAlt *callLogMsg `json:"callLogMessage"`
}

type mediaMsg struct {
	URL           string `json:"url"`
	Mimetype      string `json:"mimetype"`
	Caption       string `json:"caption"`
	FileName      string `json:"fileName"`
	FileLength    Number `json:"fileLength"`
	PageCount     Number `json:"pageCount"`
	Seconds       Number `json:"seconds"`
	JPEGThumbnail Blob   `json:"jpegThumbnail"`
}

type locationMsg struct {
	DegreesLatitude  Float  `json:"degreesLatitude"`
	DegreesLongitude Float  `json:"degreesLongitude"`
	Name             string `json:"name"`
	Address          string `json:"address"`
}

type contactMsg struct {
	DisplayName string `json:"displayName"`
	Vcard       string `json:"vcard"`
}

type pollMsg struct {
	Name    string `json:"name"`
	Options []struct {
		OptionName string `json:"optionName"`
	} `json:"options"`
	SelectableOptionsCount Number `json:"selectableOptionsCount"`
}

type eventMsg struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StartTime   Number `json:"startTime"`
	IsCanceled  bool   `json:"isCanceled"`
	Location    *struct {
		Name string `json:"name"`
	} `json:"location"`
}

type listMsg struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ButtonText  string `json:"buttonText"`
	Sections    []struct {
		Title string `json:"title"`
		Rows  []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			RowID       string `json:"rowId"`
		} `json:"rows"`
	} `json:"sections"`
}

type buttonsMsg struct {
	Text        string `json:"text"`
	ContentText string `json:"contentText"`
	FooterText  string `json:"footerText"`
	Buttons     []struct {
		ButtonID   string `json:"buttonId"`
		ButtonText *struct {
			DisplayText string `json:"displayText"`
		} `json:"buttonText"`
	} `json:"buttons"`
}

type extendedTextMsg struct {
	Text        string `json:"text"`
	ContextInfo *struct {
		ExternalAdReply *adReply `json:"externalAdReply"`
	} `json:"contextInfo"`
}

type adReply struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Thumbnail    Blob   `json:"thumbnail"`
	SourceURL    string `json:"sourceUrl"`
	MediaURL     string `json:"mediaUrl"`
	SourceType   string `json:"sourceType"`
	SourceApp    string `json:"sourceApp"`
}

type callLogMsg struct {
	IsVideo      bool   `json:"isVideo"`
	CallOutcome  Label  `json:"callOutcome"`
	DurationSecs Number `json:"durationSecs"`
}

// fragment holds what path lookup could read from an undecodable record.
type fragment struct {
	ID        string
	Timestamp Number
	FromMe    bool
	Body      string
	Ack       Number
	AckName   string
	HasMedia  bool
	Mimetype  string
	MediaURL  string
}

// Decode turns a raw gateway record into a Payload. It never fails: any
// record the structured decoder rejects becomes the Unknown variant.
func Decode(raw []byte) Payload {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		return Payload{Shape: ShapeKnown, env: env}
	}
	return Payload{Shape: ShapeUnknown, frag: readFragment(raw)}
}

func readFragment(raw []byte) fragment {
	root := jsoniter.Get(raw)
	if root.ValueType() != jsoniter.ObjectValue {
		return fragment{}
	}
	f := fragment{
		ID:       stringAt(root, "id"),
		FromMe:   root.Get("fromMe").ToBool(),
		Body:     stringAt(root, "body"),
		AckName:  stringAt(root, "ackName"),
		HasMedia: root.Get("hasMedia").ToBool(),
		Mimetype: firstString(stringAt(root.Get("media"), "mimetype"), stringAt(root.Get("_data"), "mimetype")),
		MediaURL: firstString(stringAt(root.Get("media"), "url"), stringAt(root, "mediaUrl")),
	}
	if ts := root.Get("timestamp"); ts.ValueType() == jsoniter.NumberValue {
		f.Timestamp = Number{Value: ts.ToInt64(), Valid: true}
	}
	if ack := root.Get("ack"); ack.ValueType() == jsoniter.NumberValue {
		f.Ack = Number{Value: ack.ToInt64(), Valid: true}
	}
	return f
}

func stringAt(root jsoniter.Any, key string) string {
	v := root.Get(key)
	if v.ValueType() != jsoniter.StringValue {
		return ""
	}
	return v.ToString()
}

// vendor returns the nested protobuf message, or an empty one.
func (e *envelope) vendor() *vendorMessage {
	if e.Data == nil || e.Data.Message == nil {
		return &vendorMessage{}
	}
	return e.Data.Message
}

func (e *envelope) data() *vendorData {
	if e.Data == nil {
		return &vendorData{}
	}
	return e.Data
}

func (m *vendorMessage) poll() *pollMsg {
	switch {
	case m.Poll != nil:
		return m.Poll
	case m.PollV2 != nil:
		return m.PollV2
	default:
		return m.PollV3
	}
}

func (m *vendorMessage) callLog() *callLogMsg {
	if m.CallLog != nil {
		return m.CallLog
	}
	return m.CallLogAlt
}

func (m *vendorMessage) adReply() *adReply {
	if m.ExtendedText == nil || m.ExtendedText.ContextInfo == nil {
		return nil
	}
	return m.ExtendedText.ContextInfo.ExternalAdReply
}

// ID returns the gateway message id.
func (p *Payload) ID() string {
	if p.Shape == ShapeKnown {
		return p.env.ID
	}
	return p.frag.ID
}

// FromMe reports whether the connected account sent the message.
func (p *Payload) FromMe() bool {
	if p.Shape == ShapeKnown {
		return p.env.FromMe
	}
	return p.frag.FromMe
}

// HasMedia reports the gateway's media flag.
func (p *Payload) HasMedia() bool {
	if p.Shape == ShapeKnown {
		return p.env.HasMedia
	}
	return p.frag.HasMedia
}

// TimestampMillis returns the message time in epoch milliseconds.
func (p *Payload) TimestampMillis() int64 {
	ts := p.frag.Timestamp
	if p.Shape == ShapeKnown {
		ts = p.env.Timestamp
	}
	return ToMillis(ts)
}

// Ack returns the acknowledgment level and whether any ack data was present.
func (p *Payload) Ack() (Ack, bool) {
	if p.Shape == ShapeKnown {
		return ParseAck(p.env.Ack, p.env.AckName)
	}
	return ParseAck(p.frag.Ack, p.frag.AckName)
}

// Text returns the first textual content found in the record.
func (p *Payload) Text() string {
	if p.Shape != ShapeKnown {
		return p.frag.Body
	}
	e := &p.env
	if e.Body != "" {
		return e.Body
	}
	m := e.vendor()
	switch {
	case m.Conversation != "":
		return m.Conversation
	case m.ExtendedText != nil && m.ExtendedText.Text != "":
		return m.ExtendedText.Text
	case m.Image != nil && m.Image.Caption != "":
		return m.Image.Caption
	case m.Video != nil && m.Video.Caption != "":
		return m.Video.Caption
	case m.Document != nil && m.Document.Caption != "":
		return m.Document.Caption
	}
	return ""
}

// MediaURL returns the downloadable media location, if any.
func (p *Payload) MediaURL() string {
	if p.Shape != ShapeKnown {
		return p.frag.MediaURL
	}
	if p.env.Media != nil && p.env.Media.URL != "" {
		return p.env.Media.URL
	}
	return p.env.MediaURL
}

// ToMillis converts a gateway timestamp to epoch milliseconds. Values that
// already look like milliseconds are returned unchanged.
func ToMillis(ts Number) int64 {
	if !ts.Valid || ts.Value <= 0 {
		return 0
	}
	if ts.Value > 1e12 {
		return ts.Value
	}
	return ts.Value * 1000
}
