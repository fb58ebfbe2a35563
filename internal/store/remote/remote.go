// Package remote is a store.Store client for a tada server: writes go over
// HTTP, each subscription holds its own websocket.
package remote

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
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/store"
)

// Client talks to a tada server.
type Client struct {
	base    *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	log     *log.Logger
	onFault func(error)
}

var _ store.Store = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each write request and websocket handshake.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
		c.dialer.HandshakeTimeout = d
	}
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithFaultHandler receives subscription failures such as a dropped
// connection. They are not retried.
func WithFaultHandler(fn func(error)) Option {
	return func(c *Client) { c.onFault = fn }
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url %q: scheme must be http or https", baseURL)
	}
	d := *websocket.DefaultDialer
	c := &Client{
		base:   u,
		http:   &http.Client{},
		dialer: &d,
		log:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.onFault == nil {
		c.onFault = logging.FaultHandler(c.log)
	}
	return c, nil
}

func (c *Client) endpoint(elems ...string) string {
	u := *c.base
	escaped := make([]string, len(elems))
	for i, e := range elems {
		escaped[i] = url.PathEscape(e)
	}
	u.Path = u.Path + "/v1/collections/" + strings.Join(escaped, "/")
	return u.String()
}

func (c *Client) listenURL(collection string) string {
	u, _ := url.Parse(c.endpoint(collection, "listen"))
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

// Subscribe opens a websocket to the collection's listen endpoint. The
// server sends the current snapshot first and a new one after every change.
func (c *Client) Subscribe(ctx context.Context, q store.Query, fn store.Listener) (store.Unsubscribe, error) {
	ws, resp, err := c.dialer.DialContext(ctx, c.listenURL(q.Collection), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("subscribe %s: %s: %w", q.Collection, resp.Status, err)
		}
		return nil, fmt.Errorf("subscribe %s: %w", q.Collection, err)
	}

	sub := &subscription{ws: ws}
	stop := context.AfterFunc(ctx, sub.close)
	go c.read(sub, q.Collection, fn)

	return func() {
		stop()
		sub.close()
	}, nil
}

type subscription struct {
	ws     *websocket.Conn
	closed atomic.Bool
	once   sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.ws.Close()
	})
}

func (c *Client) read(sub *subscription, collection string, fn store.Listener) {
	for {
		var snap store.Snapshot
		if err := sub.ws.ReadJSON(&snap); err != nil {
			if !sub.closed.Load() {
				c.onFault(fmt.Errorf("subscription %s: %w", collection, err))
				sub.close()
			}
			return
		}
		if sub.closed.Load() {
			return
		}
		c.log.Debug("snapshot", "collection", snap.Collection, "documents", len(snap.Documents))
		fn(snap)
	}
}

type insertResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) Insert(ctx context.Context, collection string, fields store.Fields) (string, error) {
	var out insertResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint(collection, "documents"), fields, &out); err != nil {
		return "", fmt.Errorf("insert: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("insert: server returned no id")
	}
	return out.ID, nil
}

func (c *Client) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	if err := c.do(ctx, http.MethodPatch, c.endpoint(collection, "documents", id), fields, nil); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if err := c.do(ctx, http.MethodDelete, c.endpoint(collection, "documents", id), nil, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// do sends body as JSON and decodes a 2xx response into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return store.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
