// Package audio turns note events into scheduled synthesized tones.
//
// One Engine exists per viewer session. The processing graph (mixer,
// recording tee, master gain) is built lazily on first Enable; until
// then, and whenever disabled, PlayNotes is a silent no-op so autoplay
// restrictions and headless runs never crash anything. The master
// output can additionally be captured and written out as a WAV file.
package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"github.com/lumenfield/swarmview/internal/frame"
)

const (
	// SampleRate for synthesis, playback, and recording.
	SampleRate beep.SampleRate = 44100

	// maxBatch caps how many notes one frame may schedule.
	maxBatch = 5

	// stagger offsets successive note onsets within a batch.
	stagger = 20 * time.Millisecond

	// masterGain scales the mixed output. effects.Gain multiplies by
	// 1+Gain, so -0.7 is the 0.3 master level.
	masterGain = -0.7
)

// Frequency converts a MIDI-like pitch to Hz via equal temperament.
func Frequency(pitch int) float64 {
	return 440 * math.Pow(2, float64(pitch-69)/12)
}

// Sink abstracts the playback device so the engine is testable without
// opening real audio output.
type Sink interface {
	Init(sr beep.SampleRate, bufSize int) error
	Play(s beep.Streamer)
	// Lock/Unlock guard mutations of streamers the device is pulling.
	Lock()
	Unlock()
	Close()
}

// SpeakerSink plays through the process-wide speaker.
type SpeakerSink struct{}

func (SpeakerSink) Init(sr beep.SampleRate, bufSize int) error { return speaker.Init(sr, bufSize) }
func (SpeakerSink) Play(s beep.Streamer)                       { speaker.Play(s) }
func (SpeakerSink) Lock()                                      { speaker.Lock() }
func (SpeakerSink) Unlock()                                    { speaker.Unlock() }
func (SpeakerSink) Close()                                     { speaker.Close() }

// Engine owns the synthesis graph.
type Engine struct {
	sink   Sink
	outDir string

	mu      sync.Mutex
	enabled bool
	muted   bool
	built   bool
	mixer   *beep.Mixer
	tee     *recorder
	master  *effects.Gain
}

// NewEngine creates an engine on the given sink. Recordings are written
// into outDir ("." when empty).
func NewEngine(sink Sink, outDir string) *Engine {
	if outDir == "" {
		outDir = "."
	}
	return &Engine{sink: sink, outDir: outDir}
}

// NewSpeakerEngine is the production constructor.
func NewSpeakerEngine(outDir string) *Engine {
	return NewEngine(SpeakerSink{}, outDir)
}

// Enable builds the graph on first call and turns synthesis on.
func (e *Engine) Enable() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.built {
		if err := e.sink.Init(SampleRate, SampleRate.N(100*time.Millisecond)); err != nil {
			return fmt.Errorf("audio init: %w", err)
		}
		e.mixer = &beep.Mixer{}
		e.tee = &recorder{inner: e.mixer}
		e.master = &effects.Gain{Streamer: e.tee, Gain: masterGain}
		e.sink.Play(e.master)
		e.built = true
	}
	e.enabled = true
	return nil
}

// Enabled reports whether synthesis is on.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetMuted silences the master stage without dropping scheduled tones.
func (e *Engine) SetMuted(m bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = m
	if e.built {
		e.sink.Lock()
		if m {
			e.master.Gain = -1 // multiply by zero
		} else {
			e.master.Gain = masterGain
		}
		e.sink.Unlock()
	}
}

// Muted reports the mute state.
func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// Close tears the sink down.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.built {
		e.sink.Close()
		e.built = false
	}
	e.enabled = false
}

// PlayNotes schedules tones for a batch of note events. At most five
// notes play per batch, each staggered 20ms after the previous. An
// empty or nil batch deliberately schedules one neutral fallback tone
// rather than staying silent. Before Enable this is a no-op.
func (e *Engine) PlayNotes(notes []frame.Note) {
	e.mu.Lock()
	if !e.enabled || !e.built {
		e.mu.Unlock()
		return
	}
	mixer := e.mixer
	e.mu.Unlock()

	tones := buildTones(notes)
	e.sink.Lock()
	for _, t := range tones {
		mixer.Add(t)
	}
	e.sink.Unlock()
}

// fallbackTone is the documented neutral tone for empty batches:
// middle C at velocity 40 for 0.4s.
func fallbackTone() *tone {
	return newTone(Frequency(60), melodyGain(40), 0.4, shapeSine, 0)
}

// buildTones converts a note batch to schedulable streamers.
func buildTones(notes []frame.Note) []*tone {
	if len(notes) == 0 {
		return []*tone{fallbackTone()}
	}
	if len(notes) > maxBatch {
		notes = notes[:maxBatch]
	}

	tones := make([]*tone, 0, len(notes))
	for i, n := range notes {
		delay := time.Duration(i) * stagger
		freq := Frequency(n.Pitch)
		if n.IsBass() {
			// Long low sustain, fixed low gain.
			dur := math.Min(2.2, 4*n.DurationOrDefault())
			tones = append(tones, newTone(freq, 0.09, dur, shapeSine, delay))
		} else {
			dur := math.Min(0.18, n.DurationOrDefault())
			tones = append(tones, newTone(freq, melodyGain(n.Velocity), dur, shapeTriangle, delay))
		}
	}
	return tones
}

// melodyGain is velocity-scaled and capped; zero velocity falls back to
// a moderate 60.
func melodyGain(velocity int) float64 {
	if velocity <= 0 {
		velocity = 60
	}
	return math.Min(0.15, float64(velocity)/127*0.12)
}

// --- Recording ---

// recorder tees the mixed stream into a capture buffer while active.
type recorder struct {
	inner beep.Streamer

	mu     sync.Mutex
	active bool
	buf    [][2]float64
}

func (r *recorder) Stream(samples [][2]float64) (int, bool) {
	n, ok := r.inner.Stream(samples)
	r.mu.Lock()
	if r.active && n > 0 {
		r.buf = append(r.buf, samples[:n]...)
	}
	r.mu.Unlock()
	return n, ok
}

func (r *recorder) Err() error { return nil }

// StartRecording begins capturing the master output. Enable must have
// been called; recording without a graph is an error, not a crash.
func (e *Engine) StartRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.built {
		return fmt.Errorf("start recording: audio not enabled")
	}
	e.tee.mu.Lock()
	e.tee.active = true
	e.tee.buf = e.tee.buf[:0]
	e.tee.mu.Unlock()
	return nil
}

// Recording reports whether capture is running.
func (e *Engine) Recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.built {
		return false
	}
	e.tee.mu.Lock()
	defer e.tee.mu.Unlock()
	return e.tee.active
}

// StopRecording ends capture and writes the buffered audio to a WAV
// file in the engine's output directory, returning its path.
func (e *Engine) StopRecording() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.built {
		return "", fmt.Errorf("stop recording: audio not enabled")
	}

	e.tee.mu.Lock()
	e.tee.active = false
	buf := e.tee.buf
	e.tee.buf = nil
	e.tee.mu.Unlock()

	path := filepath.Join(e.outDir, fmt.Sprintf("swarmview-rec-%s.wav", uuid.NewString()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create recording: %w", err)
	}
	defer f.Close()

	format := beep.Format{SampleRate: SampleRate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, &sliceStreamer{samples: buf}, format); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("encode recording: %w", err)
	}
	return path, nil
}

// sliceStreamer replays captured samples once.
type sliceStreamer struct {
	samples [][2]float64
	pos     int
}

func (s *sliceStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := copy(samples, s.samples[s.pos:])
	s.pos += n
	return n, true
}

func (s *sliceStreamer) Err() error { return nil }
