package artview

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/lumenfield/swarmview/internal/frame"
	"github.com/lumenfield/swarmview/internal/framestore"
)

func artFrame(mode string, agents ...frame.Agent) *frame.Frame {
	return &frame.Frame{Art: &frame.ArtFrame{
		Agents: agents,
		Meta:   frame.ArtMeta{ArtMode: mode},
	}}
}

func step(r *Renderer, n int) {
	now := time.Unix(2000, 0)
	for i := 0; i < n; i++ {
		now = now.Add(33 * time.Millisecond)
		r.Step(now)
	}
}

func TestStepNoData(t *testing.T) {
	// No frame, and a frame with no art sub-frame: both render the
	// empty state without panicking.
	store := framestore.New()
	r := New(store, 80, 80)
	step(r, 3)

	store.Publish(&frame.Frame{}, framestore.SourcePush)
	step(r, 3)
}

func TestAgentDrawnAtPosition(t *testing.T) {
	store := framestore.New()
	store.Publish(artFrame("freeform", frame.Agent{
		X: 40, Y: 40, Color: frame.RGB{255, 0, 0},
		Trail: []frame.Point{{X: 30, Y: 40}, {X: 35, Y: 40}},
	}), framestore.SourcePush)

	r := New(store, 80, 80)
	step(r, 1)

	img := r.Surface().Image()
	cr, _, _, _ := img.At(40, 40).RGBA()
	if cr>>8 < 200 {
		t.Errorf("agent dot not drawn: red channel = %d", cr>>8)
	}
}

// Trails persist: after the agent moves, its old position still carries
// faded color for several ticks because the surface fades instead of
// clearing.
func TestTrailPersistsAcrossTicks(t *testing.T) {
	store := framestore.New()
	store.Publish(artFrame("mandala", frame.Agent{
		X: 20, Y: 20, Color: frame.RGB{0, 255, 0},
	}), framestore.SourcePush)

	r := New(store, 80, 80)
	step(r, 1)

	// Move the agent away.
	store.Publish(artFrame("mandala", frame.Agent{
		X: 60, Y: 60, Color: frame.RGB{0, 255, 0},
	}), framestore.SourcePush)
	step(r, 3)

	img := r.Surface().Image()
	_, gOld, _, _ := img.At(20, 20).RGBA()
	if gOld == 0 {
		t.Error("old position fully black; fade should leave a trail")
	}
	_, gNew, _, _ := img.At(60, 60).RGBA()
	if gNew>>8 < 200 {
		t.Errorf("new position not drawn: green = %d", gNew>>8)
	}
}

// The composition-like mode fades slower than the others.
func TestModeFadeOrdering(t *testing.T) {
	mandala := styleFor(frame.ModeMandala)
	freeform := styleFor(frame.ModeFreeform)
	geometric := styleFor(frame.ModeGeometric)

	if mandala.fadeAlpha >= freeform.fadeAlpha {
		t.Errorf("mandala fade %v should be slower than freeform %v", mandala.fadeAlpha, freeform.fadeAlpha)
	}
	if mandala.fadeAlpha >= geometric.fadeAlpha {
		t.Errorf("mandala fade %v should be slower than geometric %v", mandala.fadeAlpha, geometric.fadeAlpha)
	}
}

// Unknown or absent modes fall back to fixed defaults.
func TestModeDefaults(t *testing.T) {
	if styleFor(frame.ArtMeta{}.Mode()) != styleFor(frame.ModeFreeform) {
		t.Error("absent meta should style as freeform")
	}
	if styleFor(frame.ArtMeta{ArtMode: "cubist"}.Mode()) != styleFor(frame.ModeFreeform) {
		t.Error("unknown mode should style as freeform")
	}
}

func TestHeading(t *testing.T) {
	a := frame.Agent{X: 10, Y: 0, Trail: []frame.Point{{X: 0, Y: 0}}}
	hx, hy := heading(a)
	if hx != 1 || hy != 0 {
		t.Errorf("heading = (%v, %v), want (1, 0)", hx, hy)
	}

	// No trail, or zero displacement: defined default, no NaN.
	for _, a := range []frame.Agent{
		{X: 5, Y: 5},
		{X: 5, Y: 5, Trail: []frame.Point{{X: 5, Y: 5}}},
	} {
		hx, hy := heading(a)
		if hx != 0 || hy != 1 {
			t.Errorf("degenerate heading = (%v, %v), want (0, 1)", hx, hy)
		}
	}
}

func TestCaptureSynchronous(t *testing.T) {
	store := framestore.New()
	r := New(store, 64, 64)

	// Before any draw: valid no-content capture.
	data, err := r.Capture()
	if err != nil {
		t.Fatalf("capture before draw: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("pre-draw capture invalid: %v", err)
	}

	store.Publish(artFrame("geometric", frame.Agent{X: 32, Y: 32, Color: frame.RGB{255, 255, 255}}), framestore.SourcePush)
	step(r, 2)
	data, err = r.Capture()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("capture invalid: %v", err)
	}
}
