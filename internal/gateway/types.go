package gateway

import (
	"errors"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

// SessionDescriptor is one gateway connection. Only Name is relied upon.
type SessionDescriptor struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// RawChat is one record of the chats overview endpoint. LastMessage is the
// gateway's full message record and is decoded by the wa package.
type RawChat struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Picture     string              `json:"picture"`
	LastMessage jsoniter.RawMessage `json:"lastMessage"`
	Contact     *RawContact         `json:"contact"`
	UnreadCount int                 `json:"unreadCount"`
}

// RawContact is the optional contact sub-record of a chat.
type RawContact struct {
	Name              string `json:"name"`
	PushName          string `json:"pushname"`
	ShortName         string `json:"shortName"`
	Number            string `json:"number"`
	ProfilePictureURL string `json:"profilePictureURL"`
}

// ErrUnsupported reports that the gateway does not implement an endpoint.
var ErrUnsupported = errors.New("gateway: operation not supported")

// StatusError is returned for any non-2xx gateway response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("gateway %s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("gateway %s %s: %d %s", e.Method, e.Path, e.Code, e.Body)
}

// Unwrap lets errors.Is(err, ErrUnsupported) match missing endpoints.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return ErrUnsupported
	}
	return nil
}
