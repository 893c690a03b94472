// Package transport connects the viewer to the backend.
//
// A Client maintains two paths into the frame store: a persistent
// websocket push feed, and a one-shot HTTP snapshot fetch so a frame is
// available before the websocket handshake completes. Precedence is
// handled by the store: pushed frames always win over the snapshot.
// Transport failures are logged and never fatal; the last good frame is
// retained until a new one arrives.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumenfield/swarmview/internal/frame"
	"github.com/lumenfield/swarmview/internal/framestore"
)

// Client feeds a frame store from a backend base address.
type Client struct {
	base   string
	store  *framestore.Store
	httpc  *http.Client
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

// New creates a client for the given base address, e.g.
// "http://127.0.0.1:8000". Endpoint paths are derived from it.
func New(base string, store *framestore.Store) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		store:  store,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		dialer: websocket.DefaultDialer,
		done:   make(chan struct{}),
	}
}

// WSURL derives the push feed address from an HTTP base address. The
// websocket scheme mirrors the base scheme: https becomes wss.
func WSURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	default:
		return "ws://" + base + "/ws"
	}
}

// Start launches the snapshot fetch and the push feed concurrently.
// Neither blocks the caller; rendering never waits on the network.
func (c *Client) Start() {
	go func() {
		if err := c.FetchSnapshot(context.Background()); err != nil {
			log.Printf("transport: snapshot fetch: %v", err)
		}
	}()
	go c.runFeed()
}

// Close stops the feed and closes the underlying connection. It is safe
// to call once; loops observe done and exit instead of redialing.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// FetchSnapshot pulls the whole current state frame once and offers it
// to the store. The store rejects it if a pushed frame already arrived.
func (c *Client) FetchSnapshot(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/state", nil)
	if err != nil {
		return fmt.Errorf("snapshot request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("snapshot fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("snapshot fetch: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("snapshot body: %w", err)
	}
	f, err := frame.Decode(body)
	if err != nil {
		return err
	}
	c.store.Publish(f, framestore.SourcePull)
	return nil
}

// runFeed dials the push feed and replaces the current frame with every
// inbound message. Connection loss triggers a backoff redial; the frame
// store keeps the last good frame throughout, so a stale panel is the
// worst outcome.
func (c *Client) runFeed() {
	url := WSURL(c.base)
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-c.done:
			return
		default:
		}

		conn, _, err := c.dialer.Dial(url, nil)
		if err != nil {
			log.Printf("transport: dial %s: %v (retrying in %v)", url, err, backoff)
			select {
			case <-c.done:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
	}
}

// readLoop consumes messages until the connection drops. One message is
// one full frame replacement; malformed messages are logged and skipped.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Printf("transport: read: %v", err)
			}
			return
		}
		f, err := frame.Decode(msg)
		if err != nil {
			log.Printf("transport: %v", err)
			continue
		}
		c.store.Publish(f, framestore.SourcePush)
	}
}

// Intent is one parameter nudge: {domain: {field: {value, confidence}}}.
type Intent struct {
	Domain     string
	Field      string
	Value      string
	Confidence float64
}

// SendIntent posts a parameter nudge to the backend interpreter. The
// resulting change arrives back as the next pushed frame and is treated
// like any other update.
func (c *Client) SendIntent(ctx context.Context, in Intent) error {
	payload := map[string]map[string]map[string]any{
		in.Domain: {
			in.Field: {
				"value":      in.Value,
				"confidence": in.Confidence,
			},
		},
	}
	return c.post(ctx, "/interpret", payload)
}

// SendChat posts free text for LLM interpretation.
func (c *Client) SendChat(ctx context.Context, text string) error {
	return c.post(ctx, "/chat", map[string]string{"text": text})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
