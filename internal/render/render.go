// Package render is the shared substrate for the animated views: a
// pixel Surface the renderers draw into, a re-arming animation Loop,
// and a half-block rasterizer that turns a surface into terminal rows.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/fogleman/gg"
)

// Surface is an off-screen drawing target. All renderers own one and
// redraw into it on their own tick; the TUI rasterizes whichever
// surface the active view shows.
type Surface struct {
	mu  sync.Mutex
	ctx *gg.Context
	w   int
	h   int
}

// NewSurface creates a surface cleared to black.
func NewSurface(w, h int) *Surface {
	ctx := gg.NewContext(w, h)
	ctx.SetRGB(0, 0, 0)
	ctx.Clear()
	return &Surface{ctx: ctx, w: w, h: h}
}

// Size returns the surface dimensions in pixels.
func (s *Surface) Size() (int, int) { return s.w, s.h }

// Draw runs fn with exclusive access to the drawing context. Ticks and
// captures both go through here, so a capture never observes a
// half-drawn frame.
func (s *Surface) Draw(fn func(*gg.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.ctx)
}

// Image returns a snapshot copy of the current surface contents.
// Calling it before anything was drawn yields the cleared background,
// the defined "no content" capture.
func (s *Surface) Image() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.ctx.Image()
	out := image.NewRGBA(src.Bounds())
	for y := src.Bounds().Min.Y; y < src.Bounds().Max.Y; y++ {
		for x := src.Bounds().Min.X; x < src.Bounds().Max.X; x++ {
			out.Set(x, y, src.At(x, y))
		}
	}
	return out
}

// PNG encodes the current surface contents.
func (s *Surface) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.Image()); err != nil {
		return nil, fmt.Errorf("encode surface: %w", err)
	}
	return buf.Bytes(), nil
}

// Clock abstracts time for the animation loops so tests can drive ticks
// deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock used outside tests.
var SystemClock Clock = systemClock{}

// Loop is a ticking renderer driver. It calls fn once per interval with
// the current time, re-arming itself after each call, until stopped.
// A Loop must be stopped on teardown or it keeps ticking against a
// stale surface.
type Loop struct {
	interval time.Duration
	fn       func(time.Time)
	clock    Clock

	mu      sync.Mutex
	stop    chan struct{}
	running bool
}

// NewLoop creates a loop on the system clock.
func NewLoop(interval time.Duration, fn func(time.Time)) *Loop {
	return NewLoopWithClock(interval, fn, SystemClock)
}

// NewLoopWithClock creates a loop on an injected clock.
func NewLoopWithClock(interval time.Duration, fn func(time.Time), clock Clock) *Loop {
	return &Loop{interval: interval, fn: fn, clock: clock}
}

// Start begins ticking. Starting a running loop is a no-op.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stop = make(chan struct{})
	go l.run(l.stop)
}

// Stop halts ticking. Safe to call repeatedly; a stopped loop can be
// started again.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	close(l.stop)
}

func (l *Loop) run(stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case now := <-l.clock.After(l.interval):
			// A tick racing Stop must not land on a torn-down surface.
			select {
			case <-stop:
				return
			default:
			}
			l.fn(now)
		}
	}
}

// Halfblocks rasterizes an image into terminal rows using the upper
// half block, two pixel rows per text row. cols/rows are the available
// character cells; the image is sampled to fit.
func Halfblocks(img image.Image, cols, rows int) string {
	if cols <= 0 || rows <= 0 || img == nil {
		return ""
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return ""
	}

	var sb strings.Builder
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			top := sampleAt(img, col, row*2, cols, rows*2)
			bot := sampleAt(img, col, row*2+1, cols, rows*2)
			// Raw SGR is deliberate here: one styled cell per pixel pair
			// is far too many lipgloss allocations at 30fps.
			fmt.Fprintf(&sb, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀",
				top.R, top.G, top.B, bot.R, bot.G, bot.B)
		}
		sb.WriteString("\x1b[0m")
		if row < rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// sampleAt maps a cell coordinate into the image and returns the pixel.
func sampleAt(img image.Image, cx, cy, cw, ch int) color.RGBA {
	b := img.Bounds()
	px := b.Min.X + cx*b.Dx()/cw
	py := b.Min.Y + cy*b.Dy()/ch
	if px >= b.Max.X {
		px = b.Max.X - 1
	}
	if py >= b.Max.Y {
		py = b.Max.Y - 1
	}
	r, g, bb, _ := img.At(px, py).RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(bb >> 8), 0xff}
}
