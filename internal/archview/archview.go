// Package archview renders the derived room graph as an animated
// isometric plan.
//
// Everything is redrawn every tick. The only state carried across
// architecture updates is the per-room extrusion height, which is
// low-pass filtered toward its target so structural changes animate
// instead of snapping. Heights are keyed by room index in generation
// order: identical parameters regenerate identical room lists, so the
// filter state survives idempotent re-pushes of the same frame.
package archview

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"github.com/lumenfield/swarmview/internal/frame"
	"github.com/lumenfield/swarmview/internal/framestore"
	"github.com/lumenfield/swarmview/internal/layout"
	"github.com/lumenfield/swarmview/internal/render"
)

// smoothing is the per-tick low-pass rate for extrusion heights.
const smoothing = 0.08

// targetHeight is the extrusion each level settles at.
func targetHeight(level int) float64 {
	switch level {
	case 3:
		return 48
	case 2:
		return 30
	default:
		return 18
	}
}

// Renderer draws the architecture view. Step runs on the animation
// loop; ToggleSection and Capture may be called from the UI.
type Renderer struct {
	surface *render.Surface
	store   *framestore.Store

	mu      sync.Mutex
	params  frame.Params
	rooms   []layout.Room
	heights map[int]float64
	haveGen bool
	section bool
}

// New creates a renderer drawing into a fresh surface of the given
// pixel size.
func New(store *framestore.Store, w, h int) *Renderer {
	return &Renderer{
		surface: render.NewSurface(w, h),
		store:   store,
		heights: make(map[int]float64),
	}
}

// Surface exposes the drawing target for rasterization.
func (r *Renderer) Surface() *render.Surface { return r.surface }

// ToggleSection flips between plan view and the section-cut overlay.
// User input, never server-driven.
func (r *Renderer) ToggleSection() {
	r.mu.Lock()
	r.section = !r.section
	r.mu.Unlock()
}

// SectionEnabled reports the current view mode.
func (r *Renderer) SectionEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.section
}

// Capture returns the current surface contents as PNG bytes. Before the
// first frame it captures the cleared background.
func (r *Renderer) Capture() ([]byte, error) {
	return r.surface.PNG()
}

// Heights returns a copy of the smoothed extrusion heights, in room
// index order, for observation in tests.
func (r *Renderer) Heights() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.rooms))
	for i := range r.rooms {
		out[i] = r.heights[i]
	}
	return out
}

// Step advances one animation tick: pick up the current frame, relayout
// if the canonical parameters changed, smooth heights, redraw.
func (r *Renderer) Step(now time.Time) {
	f, _ := r.store.Current()

	var af *frame.ArchitectureFrame
	if f != nil {
		af = f.Architecture
	}
	params := af.Canonical()

	r.mu.Lock()
	w, h := r.surface.Size()
	if !r.haveGen || params != r.params {
		r.params = params
		r.rooms = layout.Generate(params, float64(w), float64(h))
		r.haveGen = true
		// Height entries for indices that no longer exist are dropped;
		// surviving indices keep their filter state so a re-push of the
		// same parameters animates from where it left off.
		for i := range r.heights {
			if i >= len(r.rooms) {
				delete(r.heights, i)
			}
		}
	}

	// Low-pass each room toward its target. new = old + (target-old)*rate.
	for i, room := range r.rooms {
		t := targetHeight(room.Level)
		r.heights[i] += (t - r.heights[i]) * smoothing
	}

	rooms := make([]layout.Room, len(r.rooms))
	copy(rooms, r.rooms)
	heights := make([]float64, len(rooms))
	for i := range rooms {
		heights[i] = r.heights[i]
	}
	params = r.params
	section := r.section
	r.mu.Unlock()

	r.surface.Draw(func(ctx *gg.Context) {
		drawScene(ctx, rooms, heights, params, section)
	})
}

// sortedOrder returns room indices sorted by level ascending, core
// excluded. This is the order the room pass consumes; the linear
// corridor pass deliberately walks the same order rather than placement
// order, preserving the corridor continuity the plan actually shows.
func sortedOrder(rooms []layout.Room) []int {
	idx := make([]int, 0, len(rooms))
	for i, room := range rooms {
		if !room.Core {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return rooms[idx[a]].Level < rooms[idx[b]].Level
	})
	return idx
}

func drawScene(ctx *gg.Context, rooms []layout.Room, heights []float64, p frame.Params, section bool) {
	w := float64(ctx.Width())

	ctx.SetRGB(0.043, 0.043, 0.082) // #0b0b15
	ctx.Clear()

	if len(rooms) == 0 {
		return
	}
	core := rooms[0]
	order := sortedOrder(rooms)

	drawCirculation(ctx, core, rooms, order, p.Circulation)

	// Rooms, lowest level first so taller masses overdraw correctly.
	for _, i := range order {
		drawRoom(ctx, rooms[i], heights[i], section)
	}

	// Core last, always on top.
	drawCore(ctx, core, heights[0])

	// Parameter labels.
	ctx.SetRGBA(1, 1, 1, 0.85)
	ctx.DrawString(fmt.Sprintf("openness: %s", p.Openness), 20, 30)
	ctx.DrawString(fmt.Sprintf("privacy: %s", p.Privacy), 20, 50)
	ctx.DrawString(fmt.Sprintf("circulation: %s", p.Circulation), 20, 70)
	if section {
		ctx.DrawString("section cut", w-120, 30)
	}
}

func drawCirculation(ctx *gg.Context, core layout.Room, rooms []layout.Room, order []int, style frame.Circulation) {
	switch style {
	case frame.CircCentralized:
		// One corridor rectangle from the core to every room.
		ctx.SetRGBA(0.39, 0.63, 0.86, 0.18)
		for _, i := range order {
			r := rooms[i]
			x0, y0 := core.CenterX(), core.CenterY()
			x1, y1 := r.CenterX(), r.CenterY()
			ctx.DrawRectangle(
				minf(x0, x1)-8, minf(y0, y1)-8,
				absf(x1-x0)+16, absf(y1-y0)+16,
			)
			ctx.Fill()
		}
	case frame.CircLinear:
		// Segments between consecutive rooms in the consumed order.
		ctx.SetRGBA(0.39, 0.63, 0.86, 0.22)
		ctx.SetLineWidth(22)
		ctx.SetLineCapRound()
		for k := 1; k < len(order); k++ {
			a := rooms[order[k-1]]
			b := rooms[order[k]]
			ctx.DrawLine(a.CenterX(), a.CenterY(), b.CenterX(), b.CenterY())
			ctx.Stroke()
		}
	default:
		// Distributed: no corridor fill, routing implied by tick marks
		// pointing each room at the core.
		ctx.SetRGBA(0.63, 0.86, 1, 0.45)
		ctx.SetLineWidth(2)
		for _, i := range order {
			r := rooms[i]
			dx := core.CenterX() - r.CenterX()
			dy := core.CenterY() - r.CenterY()
			n := maxf(math.Hypot(dx, dy), 1)
			ctx.DrawLine(
				r.CenterX(), r.CenterY(),
				r.CenterX()+dx/n*14, r.CenterY()+dy/n*14,
			)
			ctx.Stroke()
		}
	}
}

// drawRoom draws one extruded mass: cast shadow, top face, side face,
// front face, edge.
func drawRoom(ctx *gg.Context, r layout.Room, height float64, section bool) {
	d := height * 0.6
	tx := r.X - d
	ty := r.Y - d

	// Cast shadow.
	ctx.SetRGBA(0, 0, 0, 0.35)
	ctx.DrawEllipse(r.CenterX(), r.Y+r.H+height*0.9, r.W*0.55, r.H*0.18)
	ctx.Fill()

	cut := section && r.Level >= 2

	// Top face; the section cut removes the roof plane.
	if !cut {
		if r.Private {
			ctx.SetRGBA(0.43, 0.43, 0.63, 0.6)
		} else {
			ctx.SetRGBA(0.78, 0.75, 1, 0.55)
		}
		ctx.DrawRectangle(tx, ty, r.W, r.H)
		ctx.Fill()
	}

	// Side face.
	ctx.SetRGBA(0.35, 0.31, 0.59, 0.55)
	ctx.MoveTo(tx, ty)
	ctx.LineTo(r.X, r.Y)
	ctx.LineTo(r.X+r.W, r.Y)
	ctx.LineTo(tx+r.W, ty)
	ctx.ClosePath()
	ctx.Fill()

	// Front face.
	ctx.SetRGBA(0.47, 0.43, 0.71, 0.65)
	ctx.DrawRectangle(r.X, r.Y, r.W, r.H)
	ctx.Fill()

	if cut {
		// Cut-away interior plus cut plane edge.
		ctx.SetRGBA(0.1, 0.1, 0.18, 0.8)
		ctx.DrawRectangle(r.X+3, r.Y+3, r.W-6, r.H*0.55)
		ctx.Fill()
		ctx.SetRGBA(1, 0.85, 0.55, 0.9)
		ctx.SetLineWidth(2)
		ctx.DrawLine(r.X, r.Y+r.H*0.55, r.X+r.W, r.Y+r.H*0.55)
		ctx.Stroke()
	}

	ctx.SetRGBA(1, 1, 1, 0.85)
	ctx.SetLineWidth(1.5)
	ctx.DrawRectangle(r.X, r.Y, r.W, r.H)
	ctx.Stroke()
}

// drawCore grounds the building: heavy shadow, flat mass, bright edge.
func drawCore(ctx *gg.Context, core layout.Room, height float64) {
	ctx.SetRGBA(0, 0, 0, 0.55)
	ctx.DrawEllipse(core.CenterX(), core.Y+core.H+maxf(height*0.9, 42), core.W*0.65, core.H*0.22)
	ctx.Fill()

	ctx.SetRGBA(0.55, 0.71, 1, 0.55)
	ctx.DrawRectangle(core.X, core.Y, core.W, core.H)
	ctx.Fill()

	ctx.SetRGBA(1, 1, 1, 1)
	ctx.SetLineWidth(3)
	ctx.DrawRectangle(core.X, core.Y, core.W, core.H)
	ctx.Stroke()
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func absf(a float64) float64 {
	if a < 0 {
		return -a
	}
	return a
}
