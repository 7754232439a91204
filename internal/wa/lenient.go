package wa

import (
	"encoding/base64"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Number is an integer field the gateway may encode as a JSON number, a
// numeric string or a protobuf Long object ({"low":..,"high":..}).
// Unmarshalling never fails; unreadable values leave Valid false.
type Number struct {
	Value int64
	Valid bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	v := jsoniter.Get(data)
	switch v.ValueType() {
	case jsoniter.NumberValue:
		n.Value, n.Valid = int64(v.ToFloat64()), true
	case jsoniter.StringValue:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.ToString()), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			n.Value, n.Valid = int64(f), true
		}
	case jsoniter.ObjectValue:
		low := v.Get("low")
		if low.ValueType() != jsoniter.NumberValue {
			return nil
		}
		high := v.Get("high").ToInt64()
		n.Value, n.Valid = high<<32|int64(uint32(low.ToInt64())), true
	}
	return nil
}

// Float is a coordinate-like field encoded as a number or a numeric string.
type Float struct {
	Value float64
	Valid bool
}

func (f *Float) UnmarshalJSON(data []byte) error {
	*f = Float{}
	v := jsoniter.Get(data)
	switch v.ValueType() {
	case jsoniter.NumberValue:
		f.Value, f.Valid = v.ToFloat64(), true
	case jsoniter.StringValue:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.ToString()), 64)
		if err == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			f.Value, f.Valid = parsed, true
		}
	}
	return nil
}

// Label is an enum-like field that may arrive as its name or its number.
type Label string

func (l *Label) UnmarshalJSON(data []byte) error {
	v := jsoniter.Get(data)
	switch v.ValueType() {
	case jsoniter.StringValue, jsoniter.NumberValue:
		*l = Label(v.ToString())
	default:
		*l = ""
	}
	return nil
}

// Blob is binary content sent either as base64 text or as a serialized
// Node Buffer ({"type":"Buffer","data":[...]}).
type Blob []byte

func (b *Blob) UnmarshalJSON(data []byte) error {
	*b = nil
	v := jsoniter.Get(data)
	switch v.ValueType() {
	case jsoniter.StringValue:
		s := v.ToString()
		if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
			*b = decoded
		} else if decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "=")); err == nil {
			*b = decoded
		}
	case jsoniter.ObjectValue:
		arr := v.Get("data")
		if arr.ValueType() != jsoniter.ArrayValue {
			return nil
		}
		out := make([]byte, 0, arr.Size())
		for i := 0; i < arr.Size(); i++ {
			out = append(out, byte(arr.Get(i).ToInt()))
		}
		*b = out
	}
	return nil
}

// DataURL renders the blob as an inline JPEG URL, or "" when empty.
func (b Blob) DataURL() string {
	if len(b) == 0 {
		return ""
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(b)
}
