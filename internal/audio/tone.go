package audio

import (
	"math"
	"time"
)

// Waveform shapes. Phase is in [0,1).
func shapeSine(phase float64) float64 {
	return math.Sin(2 * math.Pi * phase)
}

func shapeTriangle(phase float64) float64 {
	// Rises 0→1 over the first half, falls back over the second,
	// centered around zero.
	if phase < 0.5 {
		return 4*phase - 1
	}
	return 3 - 4*phase
}

// Envelope ramps, in sound samples. Short enough to be inaudible as
// such, long enough to kill onset/offset clicks.
const (
	attackSamples  = 180 // ~4ms at 44.1kHz
	releaseSamples = 700 // ~16ms
)

// tone is a one-shot oscillator with a leading silence (the batch
// stagger) and a linear attack/release envelope. It reports done once
// the sound has fully played, at which point the mixer drops it.
type tone struct {
	freq  float64
	gain  float64
	shape func(float64) float64

	delay int // silence samples before onset
	total int // sound samples

	pos   int // within the sound region
	wait  int // silence samples already emitted
	phase float64
}

func newTone(freq, gain, durationSec float64, shape func(float64) float64, delay time.Duration) *tone {
	return &tone{
		freq:  freq,
		gain:  gain,
		shape: shape,
		delay: SampleRate.N(delay),
		total: int(durationSec * float64(SampleRate)),
	}
}

func (t *tone) Stream(samples [][2]float64) (int, bool) {
	if t.pos >= t.total {
		return 0, false
	}
	step := t.freq / float64(SampleRate)
	n := 0
	for i := range samples {
		if t.wait < t.delay {
			samples[i][0], samples[i][1] = 0, 0
			t.wait++
			n++
			continue
		}
		if t.pos >= t.total {
			break
		}
		v := t.shape(t.phase) * t.gain * t.envelope()
		samples[i][0], samples[i][1] = v, v
		t.phase += step
		if t.phase >= 1 {
			t.phase -= 1
		}
		t.pos++
		n++
	}
	return n, n > 0
}

func (t *tone) Err() error { return nil }

func (t *tone) envelope() float64 {
	env := 1.0
	if t.pos < attackSamples {
		env = float64(t.pos) / attackSamples
	}
	if rem := t.total - t.pos; rem < releaseSamples {
		r := float64(rem) / releaseSamples
		if r < env {
			env = r
		}
	}
	return env
}
