// Package client talks to a running wppdeskd over its HTTP API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/matheus3301/wppdesk/internal/api"
	"github.com/matheus3301/wppdesk/internal/chats"
	"github.com/matheus3301/wppdesk/internal/messages"
	"github.com/matheus3301/wppdesk/internal/wa"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Error is a non-2xx answer from the daemon.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("daemon: %d %s", e.Code, e.Message)
}

// Message is a thread message as the client sees it. Metadata stays raw
// because its shape depends on the message kind.
type Message struct {
	wa.Message
	Metadata jsoniter.RawMessage `json:"metadata,omitempty"`
}

// Thread is messages.View with client-side messages.
type Thread struct {
	messages.View
	Messages []Message `json:"messages"`
}

// Client wraps HTTP calls to the daemon.
type Client struct {
	base string
	http *http.Client
}

// New returns a client for addr, either "host:port" or a full URL.
func New(addr string) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var out api.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

func (c *Client) Sessions(ctx context.Context) ([]string, error) {
	var out struct {
		Sessions []string `json:"sessions"`
	}
	err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &out)
	return out.Sessions, err
}

// Chats returns the chat list, loading a fresh first page when refresh is set.
func (c *Client) Chats(ctx context.Context, refresh bool) (chats.View, error) {
	path := "/api/chats"
	if refresh {
		path += "?refresh=1"
	}
	var out chats.View
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) MoreChats(ctx context.Context) (chats.View, error) {
	var out chats.View
	err := c.do(ctx, http.MethodPost, "/api/chats/more", nil, &out)
	return out, err
}

func (c *Client) MarkRead(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodPost, "/api/chats/"+url.PathEscape(chatID)+"/read", nil, nil)
}

// MarkUnread reports whether the gateway accepted the change.
func (c *Client) MarkUnread(ctx context.Context, chatID string) (bool, error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.do(ctx, http.MethodPost, "/api/chats/"+url.PathEscape(chatID)+"/unread", nil, &out)
	return out.OK, err
}

// OpenThread makes the chat current on the daemon and returns its messages.
func (c *Client) OpenThread(ctx context.Context, session, chatID string) (Thread, error) {
	var out Thread
	path := "/api/threads/" + url.PathEscape(session) + "/" + url.PathEscape(chatID)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) MoreMessages(ctx context.Context) (Thread, error) {
	var out Thread
	err := c.do(ctx, http.MethodPost, "/api/threads/current/more", nil, &out)
	return out, err
}

// Reply queues a text reply and returns its client message id.
func (c *Client) Reply(ctx context.Context, session, chatID, text string) (string, error) {
	body := map[string]string{"session": session, "chatId": chatID, "text": text}
	var out struct {
		ClientMsgID string `json:"clientMsgId"`
	}
	err := c.do(ctx, http.MethodPost, "/api/replies", body, &out)
	return out.ClientMsgID, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dial daemon: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &Error{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
