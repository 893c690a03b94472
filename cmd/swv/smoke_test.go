package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/lumenfield/swarmview/internal/framestore"
	"github.com/lumenfield/swarmview/internal/transport"
)

// TestSmokeBackend exercises the real snapshot endpoint when a backend
// is reachable. CI has none, so this usually skips.
func TestSmokeBackend(t *testing.T) {
	base := os.Getenv("SWARM_API_BASE")
	if base == "" {
		t.Skip("SWARM_API_BASE not set")
	}

	probe, err := http.Get(base + "/state")
	if err != nil {
		t.Skipf("backend not reachable: %v", err)
	}
	probe.Body.Close()

	store := framestore.New()
	c := transport.New(base, store)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.FetchSnapshot(ctx); err != nil {
		t.Fatalf("snapshot fetch failed: %v", err)
	}

	fr, gen := store.Current()
	t.Logf("snapshot: generation %d, frame present: %v", gen, fr != nil)
	if gen == 0 {
		t.Error("snapshot fetch did not publish a frame")
	}
}
