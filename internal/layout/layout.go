// Package layout derives a room graph from the canonical architecture
// parameters and lays it out deterministically on the drawing surface.
//
// The derivation is a pure function: identical canonical parameters
// produce bit-identical room rectangles. Per-room size jitter comes from
// a seeded hash of the parameter key and the room index, never a true
// RNG, so repeated pushes of the same parameters redraw the same plan.
package layout

import (
	"hash/fnv"
	"math"
	"strconv"

	"github.com/lumenfield/swarmview/internal/frame"
)

// Room is one derived rectangle in the plan.
type Room struct {
	X, Y, W, H float64

	// Level: 1 private leaf, 2 public leaf, 3 core-adjacent.
	Level   int
	Private bool
	Program string

	// Core marks the single synthetic central room, always first in the
	// slice and always drawn last, on top.
	Core bool
}

// CenterX returns the horizontal center of the room.
func (r Room) CenterX() float64 { return r.X + r.W/2 }

// CenterY returns the vertical center of the room.
func (r Room) CenterY() float64 { return r.Y + r.H/2 }

// Derived holds the parameter-table outputs for one parameter set.
type Derived struct {
	RoomCount int
	BaseSize  float64
	Variance  float64
	Gap       float64
}

// Derive applies the parameter tables. These numbers are the contract:
// privacy picks the count and jitter, openness picks the room scale and
// inter-room gap.
func Derive(p frame.Params) Derived {
	var d Derived

	switch p.Privacy {
	case frame.PrivacyHigh:
		d.RoomCount = 5
		d.Variance = 0.15
	case frame.PrivacyMedium:
		d.RoomCount = 8
		d.Variance = 0.30
	default:
		d.RoomCount = 12
		d.Variance = 0.45
	}

	switch p.Openness {
	case frame.OpenOpen:
		d.BaseSize = 130
		d.Gap = 28
	case frame.OpenMedium:
		d.BaseSize = 100
		d.Gap = 18
	default:
		d.BaseSize = 75
		d.Gap = 8
	}

	return d
}

// jitter returns a deterministic value in [0, 1) for a room index under
// a given parameter key.
func jitter(paramKey string, index int) float64 {
	h := fnv.New64a()
	h.Write([]byte(paramKey))
	h.Write([]byte("#"))
	h.Write([]byte(strconv.Itoa(index)))
	return float64(h.Sum64()%1e6) / 1e6
}

// programs label rooms in placement order; purely descriptive.
var programs = []string{
	"gallery", "studio", "listening room", "archive", "workshop",
	"reading room", "garden room", "threshold", "annex", "vault",
	"atelier", "observatory",
}

// Generate lays out the room graph for canonical parameters on a
// surface of the given size. The synthetic Core room is inserted first,
// sized 1.4x the base, centered; the remaining rooms fill a centered
// ceil(sqrt) grid row-major.
func Generate(p frame.Params, width, height float64) []Room {
	d := Derive(p)
	key := p.Key()

	cols := int(math.Ceil(math.Sqrt(float64(d.RoomCount))))
	rows := int(math.Ceil(float64(d.RoomCount) / float64(cols)))

	cell := d.BaseSize + d.Gap
	startX := (width - float64(cols)*cell) / 2
	startY := (height - float64(rows)*cell) / 2

	rooms := make([]Room, 0, d.RoomCount+1)

	coreSize := d.BaseSize * 1.4
	rooms = append(rooms, Room{
		X:       width/2 - coreSize/2,
		Y:       height/2 - coreSize/2,
		W:       coreSize,
		H:       coreSize,
		Level:   3,
		Program: "core",
		Core:    true,
	})

	centerRow := rows / 2
	centerCol := cols / 2

	idx := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if idx >= d.RoomCount {
				break
			}

			scale := 1 - jitter(key, idx)*d.Variance
			w := d.BaseSize * scale
			h := d.BaseSize * scale

			x := startX + float64(c)*cell + (cell-w)/2
			y := startY + float64(r)*cell + (cell-h)/2

			private := p.Privacy == frame.PrivacyHigh && idx%2 == 0

			level := 2
			switch {
			case r == centerRow && c == centerCol:
				level = 3
			case private:
				level = 1
			}

			rooms = append(rooms, Room{
				X:       x,
				Y:       y,
				W:       w,
				H:       h,
				Level:   level,
				Private: private,
				Program: programs[idx%len(programs)],
			})
			idx++
		}
	}

	return rooms
}
