package wa

import (
	"path"
	"strings"

	"github.com/h2non/filetype"
)

// hintKinds maps the engine-provided "_data.type" hint to a kind. Only the
// listed values are authoritative; anything else falls through.
var hintKinds = map[string]Kind{
	"poll_creation": KindPoll,
	"vcard":         KindContact,
	"multi_vcard":   KindContact,
	"document":      KindDocument,
	"location":      KindLocation,
	"image":         KindImage,
	"sticker":       KindImage,
	"video":         KindVideo,
	"gif":           KindVideo,
	"audio":         KindAudio,
	"ptt":           KindAudio,
}

// Classify maps a decoded payload to exactly one kind plus its optional
// metadata. Signals are checked strongest first.
func Classify(p *Payload) (Kind, Metadata) {
	if p == nil {
		return KindText, nil
	}
	if p.Shape != ShapeKnown {
		// Only the media flag and MIME type survive an undecodable record.
		if kind, ok := mimeKind(p.frag.HasMedia, p.frag.Mimetype); ok {
			return kind, nil
		}
		return KindText, nil
	}
	e := &p.env

	kind, ok := hintKind(e)
	if !ok {
		kind, ok = nestedKind(e.vendor())
	}
	if !ok {
		kind, ok = mimeKind(e.HasMedia, mimeType(e))
	}
	if !ok && isCallLog(e) {
		kind, ok = KindCall, true
	}
	if !ok {
		return KindText, nil
	}
	return kind, extract(kind, e)
}

func hintKind(e *envelope) (Kind, bool) {
	d := e.data()
	for _, hint := range []string{d.Type, d.MediaType} {
		if k, ok := hintKinds[strings.ToLower(strings.TrimSpace(hint))]; ok {
			return k, true
		}
	}
	return "", false
}

func nestedKind(m *vendorMessage) (Kind, bool) {
	switch {
	case m.Event != nil:
		return KindEvent, true
	case m.poll() != nil:
		return KindPoll, true
	case m.Contact != nil:
		return KindContact, true
	case m.Document != nil:
		return KindDocument, true
	case m.Location != nil:
		return KindLocation, true
	case m.Image != nil:
		return KindImage, true
	case m.Video != nil:
		return KindVideo, true
	case m.Audio != nil:
		return KindAudio, true
	case m.List != nil, m.Buttons != nil:
		return KindMenu, true
	case m.adReply() != nil:
		return KindLinkPreview, true
	}
	return "", false
}

func mimeKind(hasMedia bool, mime string) (Kind, bool) {
	if !hasMedia {
		return "", false
	}
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage, true
	case strings.HasPrefix(mime, "video/"):
		return KindVideo, true
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio, true
	case strings.HasPrefix(mime, "application/"):
		return KindDocument, true
	}
	return "", false
}

// mimeType returns the declared MIME type, inferring it from the file
// extension when the gateway left it out.
func mimeType(e *envelope) string {
	if e.Media != nil && e.Media.Mimetype != "" {
		return e.Media.Mimetype
	}
	if d := e.data(); d.Mimetype != "" {
		return d.Mimetype
	}
	ext := strings.TrimPrefix(path.Ext(fileName(e)), ".")
	if ext == "" {
		return ""
	}
	if t := filetype.GetType(strings.ToLower(ext)); t != filetype.Unknown {
		return t.MIME.Value
	}
	return ""
}

func fileName(e *envelope) string {
	if doc := e.vendor().Document; doc != nil && doc.FileName != "" {
		return doc.FileName
	}
	if e.Media != nil && e.Media.Filename != "" {
		return e.Media.Filename
	}
	return e.data().Filename
}

func isCallLog(e *envelope) bool {
	if e.vendor().callLog() != nil {
		return true
	}
	return strings.EqualFold(e.data().Type, "call_log")
}
