// Package artview renders the swarm as moving point agents with
// persistent fading trails.
//
// The loop is wall-clock driven and fully decoupled from frame arrival:
// each tick fades the surface toward black instead of clearing it, so
// motion accumulates into trails even when the feed stalls. Agents are
// redrawn from scratch from whatever the current frame holds; there is
// no identity tracking beyond what each agent's trail already encodes.
package artview

import (
	"math"
	"time"

	"github.com/fogleman/gg"

	"github.com/lumenfield/swarmview/internal/frame"
	"github.com/lumenfield/swarmview/internal/framestore"
	"github.com/lumenfield/swarmview/internal/render"
)

// style bundles the mode-dependent knobs. Fixed defaults apply when the
// meta sub-frame is absent or unrecognized.
type style struct {
	fadeAlpha  float64 // background fade per tick; lower = longer trails
	trailAlpha float64
	trailWidth float64
	glowRadius float64
	dotRadius  float64
}

func styleFor(mode frame.ArtMode) style {
	switch mode {
	case frame.ModeMandala:
		// Composition-like mode fades slowest so symmetry accumulates.
		return style{fadeAlpha: 0.05, trailAlpha: 0.35, trailWidth: 1.6, glowRadius: 7, dotRadius: 2.6}
	case frame.ModeGeometric:
		return style{fadeAlpha: 0.14, trailAlpha: 0.25, trailWidth: 2.2, glowRadius: 5, dotRadius: 3}
	default:
		return style{fadeAlpha: 0.10, trailAlpha: 0.30, trailWidth: 1.8, glowRadius: 6, dotRadius: 2.8}
	}
}

// Renderer draws the art view.
type Renderer struct {
	surface *render.Surface
	store   *framestore.Store
}

// New creates a renderer with a surface of the given pixel size.
func New(store *framestore.Store, w, h int) *Renderer {
	return &Renderer{surface: render.NewSurface(w, h), store: store}
}

// Surface exposes the drawing target for rasterization.
func (r *Renderer) Surface() *render.Surface { return r.surface }

// Capture returns the surface as PNG bytes, synchronously and safely
// from outside the render loop.
func (r *Renderer) Capture() ([]byte, error) {
	return r.surface.PNG()
}

// Step advances one animation tick.
func (r *Renderer) Step(now time.Time) {
	f, _ := r.store.Current()

	var agents []frame.Agent
	mode := frame.ModeFreeform
	if f != nil && f.Art != nil {
		agents = f.Art.Agents
		mode = f.Art.Meta.Mode()
	}
	st := styleFor(mode)

	r.surface.Draw(func(ctx *gg.Context) {
		w := float64(ctx.Width())
		h := float64(ctx.Height())

		// Fade toward black rather than clearing; this is what turns
		// per-tick redraws into trails.
		ctx.SetRGBA(0, 0, 0, st.fadeAlpha)
		ctx.DrawRectangle(0, 0, w, h)
		ctx.Fill()

		for _, a := range agents {
			drawAgent(ctx, a, st)
		}
	})
}

func drawAgent(ctx *gg.Context, a frame.Agent, st style) {
	cr := float64(a.Color[0]) / 255
	cg := float64(a.Color[1]) / 255
	cb := float64(a.Color[2]) / 255

	// Stored trail as one translucent stroke, oldest first.
	if len(a.Trail) > 1 {
		ctx.SetRGBA(cr, cg, cb, st.trailAlpha)
		ctx.SetLineWidth(st.trailWidth)
		ctx.MoveTo(a.Trail[0].X, a.Trail[0].Y)
		for _, p := range a.Trail[1:] {
			ctx.LineTo(p.X, p.Y)
		}
		ctx.LineTo(a.X, a.Y)
		ctx.Stroke()
	}

	// Glow-styled heading mark along the last displacement vector.
	hx, hy := heading(a)
	ctx.SetRGBA(cr, cg, cb, 0.18)
	ctx.DrawCircle(a.X+hx*st.glowRadius, a.Y+hy*st.glowRadius, st.glowRadius)
	ctx.Fill()

	// Solid dot at the current position.
	ctx.SetRGBA(cr, cg, cb, 1)
	ctx.DrawCircle(a.X, a.Y, st.dotRadius)
	ctx.Fill()
}

// heading returns the unit displacement from the newest trail point to
// the agent's position, or a downward default when there is no motion
// to orient by.
func heading(a frame.Agent) (float64, float64) {
	if len(a.Trail) == 0 {
		return 0, 1
	}
	last := a.Trail[len(a.Trail)-1]
	dx := a.X - last.X
	dy := a.Y - last.Y
	n := dx*dx + dy*dy
	if n == 0 {
		return 0, 1
	}
	inv := 1 / math.Sqrt(n)
	return dx * inv, dy * inv
}
