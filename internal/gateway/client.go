// Package gateway is the HTTP client for the WAHA gateway.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	apiKeyHeader = "X-Api-Key"
	maxBodyBytes = 16 << 20
	maxErrorBody = 512
)

// Options configures a Client. Zero values mean: no rate limit, no request
// timeout and http.DefaultClient.
type Options struct {
	Endpoint   Endpoint
	APIKey     string
	HTTPClient *http.Client
	Rate       float64
	Burst      int
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Client calls the gateway REST API.
type Client struct {
	endpoint Endpoint
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates a gateway client.
func New(opts Options) *Client {
	c := &Client{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		http:     opts.HTTPClient,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if opts.Rate > 0 {
		burst := max(opts.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return c
}

// Endpoint returns the endpoint strategy the client was built with.
func (c *Client) Endpoint() Endpoint { return c.endpoint }

// RewriteMedia maps a gateway media URL through the endpoint strategy.
func (c *Client) RewriteMedia(raw string) string { return c.endpoint.RewriteMedia(raw) }

// ListSessions returns the sessions known to the gateway.
func (c *Client) ListSessions(ctx context.Context) ([]SessionDescriptor, error) {
	var out []SessionDescriptor
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// ChatsOverview returns one page of chats for a session. Records the
// decoder rejects are kept with whatever id and name could be read so
// the page length still reflects what the gateway returned.
func (c *Client) ChatsOverview(ctx context.Context, session string, limit, offset int) ([]RawChat, error) {
	var raws []jsoniter.RawMessage
	path := "/api/" + url.PathEscape(session) + "/chats/overview"
	if err := c.do(ctx, http.MethodGet, path, pageQuery(limit, offset), nil, &raws); err != nil {
		return nil, fmt.Errorf("chats overview %s: %w", session, err)
	}
	chats := make([]RawChat, 0, len(raws))
	for _, raw := range raws {
		var chat RawChat
		if err := json.Unmarshal(raw, &chat); err != nil {
			c.logger.Warn("malformed chat record", zap.String("session", session), zap.Error(err))
			chat = RawChat{
				ID:   jsoniter.Get(raw, "id").ToString(),
				Name: jsoniter.Get(raw, "name").ToString(),
			}
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// ChatMessages returns one page of raw message records, newest first.
func (c *Client) ChatMessages(ctx context.Context, session, chatID string, limit, offset int) ([]jsoniter.RawMessage, error) {
	var out []jsoniter.RawMessage
	if err := c.do(ctx, http.MethodGet, chatPath(session, chatID, "/messages"), pageQuery(limit, offset), nil, &out); err != nil {
		return nil, fmt.Errorf("chat messages %s: %w", chatID, err)
	}
	return out, nil
}

// MarkRead marks every message of a chat as read.
func (c *Client) MarkRead(ctx context.Context, session, chatID string) error {
	if err := c.do(ctx, http.MethodPost, chatPath(session, chatID, "/messages/read"), nil, struct{}{}, nil); err != nil {
		return fmt.Errorf("mark read %s: %w", chatID, err)
	}
	return nil
}

// MarkUnread flags a chat as unread. Gateways without the endpoint yield
// an error matching ErrUnsupported.
func (c *Client) MarkUnread(ctx context.Context, session, chatID string) error {
	if err := c.do(ctx, http.MethodPost, chatPath(session, chatID, "/unread"), nil, struct{}{}, nil); err != nil {
		return fmt.Errorf("mark unread %s: %w", chatID, err)
	}
	return nil
}

type sendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

// SendText sends a text message and returns the gateway message id.
func (c *Client) SendText(ctx context.Context, session, chatID, text string) (string, error) {
	var raw jsoniter.RawMessage
	req := sendTextRequest{Session: session, ChatID: chatID, Text: text}
	if err := c.do(ctx, http.MethodPost, "/api/sendText", nil, req, &raw); err != nil {
		return "", fmt.Errorf("send text %s: %w", chatID, err)
	}
	id := jsoniter.Get(raw, "id")
	if id.ValueType() == jsoniter.ObjectValue {
		id = id.Get("_serialized")
	}
	return id.ToString(), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint.URL(path, query), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("gateway request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(bytes.TrimSpace(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: msg}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q
}

func chatPath(session, chatID, suffix string) string {
	return "/api/" + url.PathEscape(session) + "/chats/" + url.PathEscape(chatID) + suffix
}
