package wa

import (
	"strconv"
	"time"
)

// Metadata is the kind-specific part of a message. A nil Metadata means no
// structured data could be extracted, which is normal for plain text.
type Metadata interface {
	Kind() Kind
}

// MediaMeta describes audio and video messages.
type MediaMeta struct {
	MediaKind       Kind   `json:"-"`
	DurationSeconds int64  `json:"durationSeconds,omitempty"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
}

func (m *MediaMeta) Kind() Kind { return m.MediaKind }

// FileMeta describes documents.
type FileMeta struct {
	FileName  string `json:"fileName,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
	PageCount int64  `json:"pageCount,omitempty"`
}

func (*FileMeta) Kind() Kind { return KindDocument }

type LocationMeta struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
	Name      string  `json:"name,omitempty"`
}

func (*LocationMeta) Kind() Kind { return KindLocation }

type ContactMeta struct {
	DisplayName  string `json:"displayName,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	Email        string `json:"email,omitempty"`
	Organization string `json:"organization,omitempty"`
}

func (*ContactMeta) Kind() Kind { return KindContact }

// PollOption ids are positional; the gateway exposes no stable option id
// and no live tallies, so Votes stays zero.
type PollOption struct {
	ID    int    `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"votes"`
}

type PollMeta struct {
	Question    string       `json:"question"`
	Options     []PollOption `json:"options"`
	MultiSelect bool         `json:"multiSelect"`
}

func (*PollMeta) Kind() Kind { return KindPoll }

type MenuItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// MenuMeta is the common shape of list and buttons messages.
type MenuMeta struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Items       []MenuItem `json:"items"`
}

func (*MenuMeta) Kind() Kind { return KindMenu }

type EventMeta struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	StartTime   string `json:"startTime,omitempty"`
	Location    string `json:"location,omitempty"`
	Canceled    bool   `json:"canceled,omitempty"`
}

func (*EventMeta) Kind() Kind { return KindEvent }

type LinkPreviewMeta struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Source      string `json:"source,omitempty"`
}

func (*LinkPreviewMeta) Kind() Kind { return KindLinkPreview }

type CallMeta struct {
	Video           bool   `json:"video"`
	DurationSeconds int64  `json:"durationSeconds,omitempty"`
	Outcome         string `json:"outcome,omitempty"`
}

func (*CallMeta) Kind() Kind { return KindCall }

// isoMillis matches the millisecond UTC form browsers produce.
const isoMillis = "2006-01-02T15:04:05.000Z"

func extract(k Kind, e *envelope) Metadata {
	switch k {
	case KindAudio:
		return mediaMeta(e, e.vendor().Audio, KindAudio)
	case KindVideo:
		return mediaMeta(e, e.vendor().Video, KindVideo)
	case KindDocument:
		return fileMeta(e)
	case KindLocation:
		return locationMeta(e)
	case KindContact:
		return contactMeta(e)
	case KindPoll:
		return pollMeta(e)
	case KindMenu:
		return menuMeta(e.vendor())
	case KindEvent:
		return eventMeta(e.vendor().Event)
	case KindLinkPreview:
		return linkPreviewMeta(e)
	case KindCall:
		return callMeta(e.vendor().callLog())
	}
	return nil
}

func mediaMeta(e *envelope, m *mediaMsg, k Kind) Metadata {
	meta := &MediaMeta{MediaKind: k}
	found := false
	if m != nil && m.Seconds.Valid {
		meta.DurationSeconds, found = m.Seconds.Value, true
	} else if d := e.data(); d.Duration.Valid {
		meta.DurationSeconds, found = d.Duration.Value, true
	}
	if k == KindVideo && m != nil {
		if u := m.JPEGThumbnail.DataURL(); u != "" {
			meta.ThumbnailURL, found = u, true
		}
	}
	if !found {
		return nil
	}
	return meta
}

func fileMeta(e *envelope) Metadata {
	meta := &FileMeta{FileName: fileName(e), MimeType: mimeType(e)}
	if doc := e.vendor().Document; doc != nil {
		if doc.Mimetype != "" {
			meta.MimeType = doc.Mimetype
		}
		if doc.FileLength.Valid {
			meta.SizeBytes = doc.FileLength.Value
		}
		if doc.PageCount.Valid {
			meta.PageCount = doc.PageCount.Value
		}
	}
	if meta.SizeBytes == 0 && e.data().Size.Valid {
		meta.SizeBytes = e.data().Size.Value
	}
	if *meta == (FileMeta{}) {
		return nil
	}
	return meta
}

// locationMeta prefers the nested location message, then the gateway's
// location object, then the flat engine fields, field by field.
func locationMeta(e *envelope) Metadata {
	var lat, lng []Float
	var names, addresses []string
	if l := e.vendor().Location; l != nil {
		lat, lng = append(lat, l.DegreesLatitude), append(lng, l.DegreesLongitude)
		names, addresses = append(names, l.Name), append(addresses, l.Address)
	}
	if l := e.Location; l != nil {
		lat, lng = append(lat, l.Latitude), append(lng, l.Longitude)
		names = append(names, l.Name)
		addresses = append(addresses, l.Address, l.Description)
	}
	d := e.data()
	lat, lng = append(lat, d.Lat), append(lng, d.Lng)
	addresses = append(addresses, d.Loc)

	la, laOK := firstFloat(lat)
	lo, loOK := firstFloat(lng)
	meta := &LocationMeta{
		Latitude:  la,
		Longitude: lo,
		Name:      firstString(names...),
		Address:   firstString(addresses...),
	}
	if !laOK && !loOK && meta.Name == "" && meta.Address == "" {
		return nil
	}
	return meta
}

func contactMeta(e *envelope) Metadata {
	var display, card string
	if c := e.vendor().Contact; c != nil {
		display, card = c.DisplayName, c.Vcard
	}
	if card == "" && len(e.VCards) > 0 {
		card = e.VCards[0]
	}
	d := e.data()
	if card == "" && isVCard(d.Body) {
		card = d.Body
	}
	if card == "" && isVCard(e.Body) {
		card = e.Body
	}
	v := ParseVCard(card)
	meta := &ContactMeta{
		DisplayName:  firstString(display, d.VCardFormattedName, v.FormattedName),
		PhoneNumber:  v.Phone,
		Email:        v.Email,
		Organization: v.Organization,
	}
	if *meta == (ContactMeta{}) {
		return nil
	}
	return meta
}

func pollMeta(e *envelope) Metadata {
	meta := &PollMeta{}
	if p := e.vendor().poll(); p != nil {
		meta.Question = p.Name
		for i, o := range p.Options {
			meta.Options = append(meta.Options, PollOption{ID: i, Text: o.OptionName})
		}
		meta.MultiSelect = p.SelectableOptionsCount.Valid && p.SelectableOptionsCount.Value > 1
	} else {
		d := e.data()
		meta.Question = d.PollName
		for i, o := range d.PollOptions {
			meta.Options = append(meta.Options, PollOption{ID: i, Text: o.Name})
		}
		meta.MultiSelect = d.PollSelectable.Valid && d.PollSelectable.Value > 1
	}
	if meta.Question == "" && len(meta.Options) == 0 {
		return nil
	}
	return meta
}

func menuMeta(m *vendorMessage) Metadata {
	var meta *MenuMeta
	switch {
	case m.List != nil:
		meta = &MenuMeta{Title: m.List.Title, Description: m.List.Description}
		if len(m.List.Sections) > 0 {
			for i, row := range m.List.Sections[0].Rows {
				meta.Items = append(meta.Items, MenuItem{
					ID:          firstString(row.RowID, strconv.Itoa(i)),
					Title:       row.Title,
					Description: row.Description,
				})
			}
		}
	case m.Buttons != nil:
		meta = &MenuMeta{Title: m.Buttons.Text, Description: m.Buttons.ContentText}
		for i, b := range m.Buttons.Buttons {
			item := MenuItem{ID: firstString(b.ButtonID, strconv.Itoa(i))}
			if b.ButtonText != nil {
				item.Title = b.ButtonText.DisplayText
			}
			meta.Items = append(meta.Items, item)
		}
	default:
		return nil
	}
	if meta.Title == "" && meta.Description == "" && len(meta.Items) == 0 {
		return nil
	}
	return meta
}

func eventMeta(ev *eventMsg) Metadata {
	if ev == nil {
		return nil
	}
	meta := &EventMeta{Title: ev.Name, Description: ev.Description, Canceled: ev.IsCanceled}
	if ev.StartTime.Valid && ev.StartTime.Value > 0 {
		meta.StartTime = time.Unix(ev.StartTime.Value, 0).UTC().Format(isoMillis)
	}
	if ev.Location != nil {
		meta.Location = ev.Location.Name
	}
	if *meta == (EventMeta{}) {
		return nil
	}
	return meta
}

func linkPreviewMeta(e *envelope) Metadata {
	ad := e.vendor().adReply()
	if ad == nil {
		return nil
	}
	return &LinkPreviewMeta{
		URL:         firstString(ad.SourceURL, e.Body, e.vendor().ExtendedText.Text),
		Title:       ad.Title,
		Description: ad.Body,
		ImageURL:    firstString(ad.ThumbnailURL, ad.Thumbnail.DataURL()),
		Source:      firstString(ad.SourceType, ad.SourceApp),
	}
}

func callMeta(c *callLogMsg) Metadata {
	if c == nil {
		return nil
	}
	meta := &CallMeta{Video: c.IsVideo, Outcome: string(c.CallOutcome)}
	if c.DurationSecs.Valid {
		meta.DurationSeconds = c.DurationSecs.Value
	}
	return meta
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstFloat(values []Float) (float64, bool) {
	for _, v := range values {
		if v.Valid {
			return v.Value, true
		}
	}
	return 0, false
}
