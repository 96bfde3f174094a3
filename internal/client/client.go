// Package client talks to a marksync server: the JSON API as a live.Store
// and the WebSocket change feed as a live.Feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seckatie/marksync/internal/core"
	"github.com/seckatie/marksync/internal/core/live"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrRejected     = errors.New("rejected by server")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status >= 400 && e.Status < 500:
		return ErrRejected
	}
	return nil
}

type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithBreaker replaces the default circuit breaker settings. Name and
// IsSuccessful are always set by the client.
func WithBreaker(s gobreaker.Settings) Option {
	return func(cl *Client) { cl.breaker = cl.newBreaker(s) }
}

var (
	_ live.Store = (*Client)(nil)
	_ live.Feed  = (*Client)(nil)
)

// New returns a client for the server at serverURL authenticating with token.
func New(serverURL, token string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url: scheme must be http or https, got %q", base.Scheme)
	}
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrUnauthorized)
	}

	c := &Client{
		base:   base,
		token:  token,
		http:   &http.Client{Timeout: core.DefaultStoreTimeout},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: zap.NewNop(),
	}
	c.breaker = c.newBreaker(gobreaker.Settings{
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) newBreaker(s gobreaker.Settings) *gobreaker.CircuitBreaker {
	s.Name = "marksync-store"
	// Requests the server refused are answers, not outages.
	s.IsSuccessful = func(err error) bool {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.Status < 500
		}
		return err == nil || errors.Is(err, context.Canceled)
	}
	s.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return gobreaker.NewCircuitBreaker(s)
}

// List returns the signed-in user's bookmarks. The server derives the owner
// from the token; rows for any other owner are discarded.
func (c *Client) List(ctx context.Context, ownerID string) ([]live.Bookmark, error) {
	var rows []live.Bookmark
	if err := c.call(ctx, http.MethodGet, "/api/bookmarks", nil, http.StatusOK, &rows); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return rows, nil
	}
	out := rows[:0]
	for _, b := range rows {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (c *Client) Insert(ctx context.Context, nb live.NewBookmark) error {
	return c.call(ctx, http.MethodPost, "/api/bookmarks", nb, http.StatusCreated, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/bookmarks/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

// call performs one API request through the circuit breaker and decodes a
// successful body into out when out is non-nil.
func (c *Client) call(ctx context.Context, method, path string, in any, want int, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, in, want, out)
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}
