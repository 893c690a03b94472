package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumenfield/swarmview/internal/framestore"
)

func TestWSURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://127.0.0.1:8000", "ws://127.0.0.1:8000/ws"},
		{"http://127.0.0.1:8000/", "ws://127.0.0.1:8000/ws"},
		{"https://swarm.example.com", "wss://swarm.example.com/ws"},
		{"127.0.0.1:8000", "ws://127.0.0.1:8000/ws"},
	}
	for _, tt := range tests {
		if got := WSURL(tt.base); got != tt.want {
			t.Errorf("WSURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestFetchSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/state" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"art_frame":{"agents":[{"x":1,"y":2,"color":[10,20,30],"trail":[]}],"meta":{"art_mode":"geometric"}}}`)
	}))
	defer srv.Close()

	store := framestore.New()
	c := New(srv.URL, store)
	if err := c.FetchSnapshot(context.Background()); err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}

	f, gen := store.Current()
	if gen != 1 || f == nil || f.Art == nil {
		t.Fatalf("store not populated: gen=%d frame=%+v", gen, f)
	}
	if f.Art.Meta.ArtMode != "geometric" {
		t.Errorf("mode = %q", f.Art.Meta.ArtMode)
	}
}

func TestFetchSnapshotErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := framestore.New()
	c := New(srv.URL, store)
	if err := c.FetchSnapshot(context.Background()); err == nil {
		t.Error("expected error on 500 response")
	}
	if f, _ := store.Current(); f != nil {
		t.Error("failed fetch must not populate the store")
	}
}

var upgrader = websocket.Upgrader{}

// wsTestServer upgrades /ws and sends each payload as one message.
func wsTestServer(t *testing.T, payloads []string, hold <-chan struct{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, p := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}
		if hold != nil {
			<-hold
		}
	}))
}

func waitForGen(t *testing.T, store *framestore.Store, want uint64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, gen := store.Current(); gen >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, gen := store.Current()
	t.Fatalf("store generation = %d, want >= %d", gen, want)
}

func TestFeedReplacesFrame(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := wsTestServer(t, []string{
		`{"art_frame":{"agents":[],"meta":{"art_mode":"freeform"}}}`,
		`not json at all`,
		`{"art_frame":{"agents":[],"meta":{"art_mode":"mandala"}}}`,
	}, hold)
	defer srv.Close()

	store := framestore.New()
	c := New(srv.URL, store)
	go c.runFeed()
	defer c.Close()

	waitForGen(t, store, 2)
	f, _ := store.Current()
	if f.Art.Meta.ArtMode != "mandala" {
		t.Errorf("mode = %q, want last pushed frame", f.Art.Meta.ArtMode)
	}
}

// Push content wins over a pull snapshot that resolves later.
func TestPushBeatsLatePull(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)

	var stateBody = `{"art_frame":{"agents":[],"meta":{"art_mode":"stale-pull"}}}`
	mux := http.NewServeMux()
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, stateBody)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"art_frame":{"agents":[],"meta":{"art_mode":"live"}}}`))
		<-hold
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := framestore.New()
	c := New(srv.URL, store)
	go c.runFeed()
	defer c.Close()

	waitForGen(t, store, 1)

	// The snapshot arrives after the push and must be discarded.
	if err := c.FetchSnapshot(context.Background()); err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	f, _ := store.Current()
	if f.Art.Meta.ArtMode != "live" {
		t.Errorf("mode = %q, want push content to win", f.Art.Meta.ArtMode)
	}
}

// Closing the client tears down the connection and the feed loop exits
// without redialing.
func TestCloseStopsFeed(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := wsTestServer(t, []string{`{"art_frame":{"agents":[],"meta":{}}}`}, hold)
	defer srv.Close()

	store := framestore.New()
	c := New(srv.URL, store)

	stopped := make(chan struct{})
	go func() {
		c.runFeed()
		close(stopped)
	}()

	waitForGen(t, store, 1)
	if err := c.Close(); err != nil && !strings.Contains(err.Error(), "closed") {
		t.Logf("close: %v", err)
	}

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("feed loop did not stop after Close")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	// Connection loss never clears the store.
	if f, _ := store.Current(); f == nil {
		t.Error("frame cleared on close; stale data should be retained")
	}
}

func TestSendIntent(t *testing.T) {
	var got map[string]map[string]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/interpret" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode intent: %v", err)
		}
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := New(srv.URL, framestore.New())
	err := c.SendIntent(context.Background(), Intent{
		Domain:     "architecture",
		Field:      "spatial_openness",
		Value:      "open",
		Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("SendIntent: %v", err)
	}
	if got["architecture"]["spatial_openness"]["value"] != "open" {
		t.Errorf("payload = %+v", got)
	}
}

func TestSendChatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "interpreter offline", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, framestore.New())
	err := c.SendChat(context.Background(), "make it calmer")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("err = %v, want status 502 in message", err)
	}
}
