// Package musicview renders recent note events as a decaying stream.
//
// Notes are events, not entities: each new music frame is ingested into
// a bounded local history buffer tagged with receive time, and the
// whole visible window is redrawn every tick. A note's horizontal
// position is its age, so notes scroll out rather than move; vertical
// position is pitch normalized to the rendered range.
package musicview

import (
	"sync"
	"time"

	"github.com/fogleman/gg"

	"github.com/lumenfield/swarmview/internal/frame"
	"github.com/lumenfield/swarmview/internal/framestore"
	"github.com/lumenfield/swarmview/internal/render"
)

const (
	// Capacity bounds the history buffer; oldest entries drop first.
	Capacity = 96

	// AgeWindow is how long a note stays visible. Older entries are
	// skipped at draw time, not necessarily evicted immediately.
	AgeWindow = 2500 * time.Millisecond

	// Rendered pitch range.
	pitchMin = 36
	pitchMax = 84

	// Horizontal scroll speed in pixels per second of age.
	ageSpeed = 220
)

// Entry is one remembered note event.
type Entry struct {
	Note       frame.Note
	ReceivedAt time.Time
}

// Renderer ingests music frames and draws the history.
type Renderer struct {
	surface *render.Surface
	store   *framestore.Store

	mu      sync.Mutex
	history []Entry
	lastGen uint64
	chord   *int
}

// New creates a renderer with a surface of the given pixel size.
func New(store *framestore.Store, w, h int) *Renderer {
	return &Renderer{surface: render.NewSurface(w, h), store: store}
}

// Surface exposes the drawing target for rasterization.
func (r *Renderer) Surface() *render.Surface { return r.surface }

// Capture returns the surface as PNG bytes.
func (r *Renderer) Capture() ([]byte, error) { return r.surface.PNG() }

// Chord returns the most recent chord pitch class, or nil.
func (r *Renderer) Chord() *int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chord
}

// HistoryLen reports the buffered entry count.
func (r *Renderer) HistoryLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// Ingest appends the notes of a music frame, tagged with the local
// receive time, trimming the buffer from the front when over capacity.
func (r *Renderer) Ingest(mf *frame.MusicFrame, receivedAt time.Time) {
	if mf == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range mf.Notes {
		r.history = append(r.history, Entry{Note: n, ReceivedAt: receivedAt})
	}
	if over := len(r.history) - Capacity; over > 0 {
		r.history = append(r.history[:0:0], r.history[over:]...)
	}
	if mf.Chord != nil {
		c := *mf.Chord
		r.chord = &c
	}
}

// Step advances one animation tick: ingest any new frame generation,
// then redraw the entire visible window.
func (r *Renderer) Step(now time.Time) {
	f, gen := r.store.Current()

	r.mu.Lock()
	fresh := gen != r.lastGen
	r.lastGen = gen
	r.mu.Unlock()

	if fresh && f != nil {
		r.Ingest(f.Music, now)
	}

	r.mu.Lock()
	entries := make([]Entry, len(r.history))
	copy(entries, r.history)
	r.mu.Unlock()

	r.surface.Draw(func(ctx *gg.Context) {
		drawHistory(ctx, entries, now)
	})
}

func drawHistory(ctx *gg.Context, entries []Entry, now time.Time) {
	w := float64(ctx.Width())
	h := float64(ctx.Height())

	// Decaying background instead of a hard clear.
	ctx.SetRGBA(0.031, 0.031, 0.055, 0.35)
	ctx.DrawRectangle(0, 0, w, h)
	ctx.Fill()

	// Vertical grid.
	ctx.SetRGBA(1, 1, 1, 0.05)
	ctx.SetLineWidth(1)
	for x := 0.0; x < w; x += 60 {
		ctx.DrawLine(x, 0, x, h)
		ctx.Stroke()
	}

	for _, e := range entries {
		age := now.Sub(e.ReceivedAt)
		if age < 0 || age > AgeWindow {
			continue // skipped, not evicted
		}

		x := age.Seconds() * ageSpeed
		if x > w {
			continue
		}
		pitchNorm := (float64(e.Note.Pitch) - pitchMin) / (pitchMax - pitchMin)
		pitchNorm = clamp01(pitchNorm)
		y := h - pitchNorm*h

		nw := e.Note.DurationOrDefault() * 120
		nh := 6.0
		alpha := 0.9
		if e.Note.IsBass() {
			nh = 10
			alpha = 0.8
		}
		if e.Note.Call {
			alpha *= 0.55 // call notes only dim, nothing else changes
		}

		if e.Note.IsBass() {
			ctx.SetRGBA(0.47, 0.86, 0.86, alpha)
		} else {
			ctx.SetRGBA(0.75, 0.63, 1, alpha)
		}
		ctx.DrawRectangle(x, y, nw, nh)
		ctx.Fill()
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
