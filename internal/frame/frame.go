// Package frame defines the state frame model shared by all renderers.
//
// A Frame is one complete, server-authored snapshot of the installation:
// art agents, music note events, architecture parameters, and an opaque
// story payload. Every sub-frame is independently optional; a new Frame
// replaces the previous one wholesale, never merges into it.
package frame

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Frame is the full state broadcast by the backend. Consumers must
// tolerate any field being nil and must not assume a sub-frame present
// in one Frame survives into the next.
type Frame struct {
	Art          *ArtFrame          `json:"art_frame,omitempty"`
	Music        *MusicFrame        `json:"music_frame,omitempty"`
	Architecture *ArchitectureFrame `json:"architecture,omitempty"`

	// Story is passed through untouched; the viewer only does a
	// best-effort decode for display.
	Story json.RawMessage `json:"story_frame,omitempty"`
}

// Decode parses a full Frame from a websocket message or snapshot body.
func Decode(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &f, nil
}

// --- Art ---

// ArtFrame carries the swarm agents and styling metadata.
type ArtFrame struct {
	Agents []Agent `json:"agents"`
	Meta   ArtMeta `json:"meta"`
}

// ArtMeta is styling-only context. ArtMode never changes layout logic.
type ArtMeta struct {
	ArtMode   string  `json:"art_mode"`
	Emotion   string  `json:"emotion,omitempty"`
	Symmetry  int     `json:"symmetry,omitempty"`
	FlowNoise float64 `json:"flow_noise,omitempty"`
}

// Agent is one swarm particle. Agents carry no identity; matching across
// frames is positional only, and the trail already encodes recent motion.
type Agent struct {
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Color RGB      `json:"color"`
	Trail []Point  `json:"trail"`
}

// Point is a drawing-surface coordinate. The backend serializes trail
// points as two-element arrays.
type Point struct {
	X, Y float64
}

// UnmarshalJSON accepts both [x, y] pairs and {"x":..,"y":..} objects.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err == nil {
		p.X, p.Y = pair[0], pair[1]
		return nil
	}
	var obj struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	p.X, p.Y = obj.X, obj.Y
	return nil
}

// MarshalJSON writes the wire form, a two-element array.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// RGB is a 3-tuple of 0-255 channel values, serialized as an array.
type RGB [3]uint8

// ArtMode is the canonical styling mode for the art renderer.
type ArtMode string

const (
	ModeFreeform  ArtMode = "freeform"
	ModeGeometric ArtMode = "geometric"
	ModeMandala   ArtMode = "mandala"
)

// Mode canonicalizes meta.art_mode, defaulting to freeform so the
// renderer degrades gracefully when meta is absent or unknown.
func (m ArtMeta) Mode() ArtMode {
	switch strings.ToLower(strings.TrimSpace(m.ArtMode)) {
	case "geometric", "geometry":
		return ModeGeometric
	case "mandala", "composition":
		return ModeMandala
	default:
		return ModeFreeform
	}
}

// --- Music ---

// MusicFrame carries discrete note events plus optional chord context.
// Notes are events, not persistent entities: consumers append them to
// their own history, the frame itself holds nothing across updates.
type MusicFrame struct {
	Notes []Note `json:"notes"`

	// Chord is a pitch class 0-11, or nil when the backend sends none.
	Chord *int `json:"chord,omitempty"`
}

// Layer separates melody and bass voices.
type Layer string

const (
	LayerMelody Layer = "melody"
	LayerBass   Layer = "bass"
)

// Note is one MIDI-like note event.
type Note struct {
	Pitch    int     `json:"pitch"`
	Velocity int     `json:"velocity"`
	Duration float64 `json:"duration"` // seconds; 0 means the 0.25 default
	Layer    Layer   `json:"layer"`
	Call     bool    `json:"call,omitempty"` // affects opacity only
}

// DurationOrDefault returns the note duration, substituting the 0.25s
// default for missing or non-positive values.
func (n Note) DurationOrDefault() float64 {
	if n.Duration <= 0 {
		return 0.25
	}
	return n.Duration
}

// IsBass reports whether the note belongs to the bass layer. Anything
// that is not explicitly bass renders and sounds as melody.
func (n Note) IsBass() bool {
	return strings.EqualFold(string(n.Layer), string(LayerBass))
}

// --- Architecture ---

// ArchitectureFrame carries the three categorical layout parameters as
// sent by the backend, before canonicalization.
type ArchitectureFrame struct {
	SpatialOpenness  string  `json:"spatial_openness"`
	RoomPrivacy      string  `json:"room_privacy"`
	CirculationStyle string  `json:"circulation_style"`

	// MusicEnergy is reserved for cross-modal coupling; layout ignores it.
	MusicEnergy float64 `json:"music_energy,omitempty"`
}

// Openness levels.
type Openness string

const (
	OpenTight  Openness = "tight"
	OpenMedium Openness = "medium"
	OpenOpen   Openness = "open"
)

// Privacy levels.
type Privacy string

const (
	PrivacyLow    Privacy = "low"
	PrivacyMedium Privacy = "medium"
	PrivacyHigh   Privacy = "high"
)

// Circulation styles.
type Circulation string

const (
	CircLinear      Circulation = "linear"
	CircCentralized Circulation = "centralized"
	CircDistributed Circulation = "distributed"
)

// opennessAliases maps every documented synonym/case variant to one
// canonical value. Unknown inputs fall back to medium.
var opennessAliases = map[string]Openness{
	"tight":    OpenTight,
	"closed":   OpenTight,
	"compact":  OpenTight,
	"medium":   OpenMedium,
	"balanced": OpenMedium,
	"open":     OpenOpen,
	"airy":     OpenOpen,
}

var privacyAliases = map[string]Privacy{
	"low":     PrivacyLow,
	"public":  PrivacyLow,
	"medium":  PrivacyMedium,
	"mixed":   PrivacyMedium,
	"high":    PrivacyHigh,
	"private": PrivacyHigh,
}

var circulationAliases = map[string]Circulation{
	"linear":      CircLinear,
	"sequential":  CircLinear,
	"centralized": CircCentralized,
	"central":     CircCentralized,
	"radial":      CircCentralized,
	"distributed": CircDistributed,
	"networked":   CircDistributed,
	"network":     CircDistributed,
}

// CanonicalOpenness maps a raw openness string to its canonical value.
func CanonicalOpenness(s string) Openness {
	if v, ok := opennessAliases[normalize(s)]; ok {
		return v
	}
	return OpenMedium
}

// CanonicalPrivacy maps a raw privacy string to its canonical value.
func CanonicalPrivacy(s string) Privacy {
	if v, ok := privacyAliases[normalize(s)]; ok {
		return v
	}
	return PrivacyMedium
}

// CanonicalCirculation maps a raw circulation string to its canonical value.
func CanonicalCirculation(s string) Circulation {
	if v, ok := circulationAliases[normalize(s)]; ok {
		return v
	}
	return CircLinear
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Params is a fully canonicalized architecture parameter set.
type Params struct {
	Openness    Openness
	Privacy     Privacy
	Circulation Circulation
}

// Canonical reduces an ArchitectureFrame to canonical parameters.
// A nil frame yields the default layout (medium/medium/linear).
func (a *ArchitectureFrame) Canonical() Params {
	if a == nil {
		return Params{OpenMedium, PrivacyMedium, CircLinear}
	}
	return Params{
		Openness:    CanonicalOpenness(a.SpatialOpenness),
		Privacy:     CanonicalPrivacy(a.RoomPrivacy),
		Circulation: CanonicalCirculation(a.CirculationStyle),
	}
}

// Key is a stable string identity for a parameter set; it seeds the
// deterministic room jitter so identical parameters always reproduce
// the identical layout.
func (p Params) Key() string {
	return string(p.Openness) + "|" + string(p.Privacy) + "|" + string(p.Circulation)
}

// --- Story ---

// StoryFrame is the display-only decode of the opaque story payload.
type StoryFrame struct {
	Phase      string           `json:"phase"`
	Enhanced   bool             `json:"enhanced"`
	Paragraphs []StoryParagraph `json:"paragraphs"`
	Meta       StoryMeta        `json:"meta"`
}

// StoryMeta carries narrative pacing hints.
type StoryMeta struct {
	Tone        string `json:"tone,omitempty"`
	Pace        string `json:"pace,omitempty"`
	TotalEvents int    `json:"total_events,omitempty"`
}

// StoryParagraph is one narrative block. The backend sends either plain
// strings or {type, content, enhanced} objects; both decode here.
type StoryParagraph struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Enhanced bool   `json:"enhanced"`
}

// UnmarshalJSON accepts bare strings as body paragraphs.
func (p *StoryParagraph) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Type = "body"
		p.Content = s
		return nil
	}
	type alias StoryParagraph
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("story paragraph: %w", err)
	}
	*p = StoryParagraph(a)
	return nil
}

// DecodeStory parses the opaque story payload for display. It never
// fails hard: a malformed payload yields an empty story.
func DecodeStory(raw json.RawMessage) StoryFrame {
	var s StoryFrame
	if len(raw) == 0 {
		return s
	}
	_ = json.Unmarshal(raw, &s)
	return s
}
