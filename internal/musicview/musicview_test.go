package musicview

import (
	"testing"
	"time"

	"github.com/lumenfield/swarmview/internal/frame"
	"github.com/lumenfield/swarmview/internal/framestore"
)

func musicFrame(notes ...frame.Note) *frame.MusicFrame {
	return &frame.MusicFrame{Notes: notes}
}

func TestIngestAppendsTagged(t *testing.T) {
	r := New(framestore.New(), 120, 60)
	at := time.Unix(3000, 0)
	r.Ingest(musicFrame(
		frame.Note{Pitch: 69, Velocity: 100, Duration: 0.2, Layer: "melody"},
	), at)

	if r.HistoryLen() != 1 {
		t.Fatalf("history length = %d, want 1", r.HistoryLen())
	}
	e := r.history[0]
	if e.Note.Pitch != 69 || !e.ReceivedAt.Equal(at) {
		t.Errorf("entry = %+v", e)
	}
}

func TestIngestNil(t *testing.T) {
	r := New(framestore.New(), 120, 60)
	r.Ingest(nil, time.Now())
	if r.HistoryLen() != 0 {
		t.Error("nil frame should not add history")
	}
}

// Buffer bound: ingesting more than capacity keeps the newest entries,
// and no surviving entry is older than any dropped one.
func TestHistoryBounded(t *testing.T) {
	r := New(framestore.New(), 120, 60)
	base := time.Unix(3000, 0)

	for i := 0; i < Capacity+40; i++ {
		r.Ingest(musicFrame(frame.Note{Pitch: 60 + i%12}), base.Add(time.Duration(i)*time.Millisecond))
	}

	if r.HistoryLen() != Capacity {
		t.Fatalf("history length = %d, want %d", r.HistoryLen(), Capacity)
	}
	// Oldest survivor must be entry 40 (the first 40 were dropped).
	oldest := r.history[0]
	if got := oldest.ReceivedAt.Sub(base); got != 40*time.Millisecond {
		t.Errorf("oldest survivor at +%v, want +40ms", got)
	}
	for i := 1; i < len(r.history); i++ {
		if r.history[i].ReceivedAt.Before(r.history[i-1].ReceivedAt) {
			t.Fatalf("history out of order at %d", i)
		}
	}
}

func TestChordTracked(t *testing.T) {
	r := New(framestore.New(), 120, 60)
	if r.Chord() != nil {
		t.Error("chord should start nil")
	}
	c := 7
	r.Ingest(&frame.MusicFrame{Chord: &c}, time.Now())
	if got := r.Chord(); got == nil || *got != 7 {
		t.Errorf("chord = %v, want 7", got)
	}
	// A frame without a chord keeps the last one.
	r.Ingest(musicFrame(frame.Note{Pitch: 60}), time.Now())
	if got := r.Chord(); got == nil || *got != 7 {
		t.Errorf("chord after chordless frame = %v, want 7", got)
	}
}

// A freshly ingested note survives at least one draw before its age
// window expires, and old notes are skipped but not evicted.
func TestDrawSkipsButKeepsOldNotes(t *testing.T) {
	store := framestore.New()
	r := New(store, 300, 120)
	now := time.Unix(4000, 0)

	store.Publish(&frame.Frame{Music: musicFrame(
		frame.Note{Pitch: 69, Velocity: 100, Duration: 0.2, Layer: "melody"},
	)}, framestore.SourcePush)

	r.Step(now)
	if r.HistoryLen() != 1 {
		t.Fatalf("history length after ingest = %d, want 1", r.HistoryLen())
	}

	// Freshly drawn: the note lands at x ~ 0 with a visible melody color.
	img := r.Surface().Image()
	found := false
	for y := 0; y < 120 && !found; y++ {
		cr, _, cb, _ := img.At(1, y).RGBA()
		if cr>>8 > 100 && cb>>8 > 150 {
			found = true
		}
	}
	if !found {
		t.Error("fresh note not visible in the first column")
	}

	// Step far past the age window: the entry is skipped at draw time
	// but still buffered.
	r.Step(now.Add(AgeWindow + time.Second))
	if r.HistoryLen() != 1 {
		t.Errorf("aged-out note evicted; it should only be skipped")
	}
}

// Bass renders at a different color and size than melody; here we only
// lock in the styling decision points.
func TestBassStyledDistinctly(t *testing.T) {
	store := framestore.New()
	r := New(store, 300, 120)
	now := time.Unix(5000, 0)

	store.Publish(&frame.Frame{Music: musicFrame(
		frame.Note{Pitch: 40, Velocity: 90, Duration: 0.5, Layer: "bass"},
	)}, framestore.SourcePush)
	r.Step(now)

	// Bass pitch 40 normalizes near the bottom of the 36..84 range; scan
	// the lower band for the bass teal (green+blue, low red).
	img := r.Surface().Image()
	found := false
	for y := 60; y < 120 && !found; y++ {
		for x := 0; x < 80 && !found; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			if cg>>8 > 150 && cb>>8 > 150 && cr>>8 < 150 {
				found = true
			}
		}
	}
	if !found {
		t.Error("bass note not rendered in the low band with bass styling")
	}
}

func TestStepNoMusicData(t *testing.T) {
	store := framestore.New()
	r := New(store, 100, 50)
	r.Step(time.Unix(6000, 0))

	store.Publish(&frame.Frame{}, framestore.SourcePush)
	r.Step(time.Unix(6000, 1))
	if r.HistoryLen() != 0 {
		t.Error("frames without music should add nothing")
	}
}
