// swv is a real-time TUI viewer for the lumenfield generative swarm.
//
// It mirrors the installation's state over websocket (with an HTTP
// snapshot for startup) and renders the art swarm, the derived
// architecture, the music history, and the narrative in the terminal.
// Notes can also be heard: the audio engine synthesizes each incoming
// batch once enabled.
//
// Usage:
//
//	swv                          # Connect to $SWARM_API_BASE or localhost:8000
//	swv --base http://host:8000  # Use a specific backend
//	swv --replay frames.json     # Replay a frame file instead of connecting
//	swv --refresh 5s             # Snapshot re-poll interval
//	swv --out ./captures         # Directory for PNG/WAV captures
//	swv --view music             # Start in a specific view
//	swv --version                # Print version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/lumenfield/swarmview/internal/archview"
	"github.com/lumenfield/swarmview/internal/artview"
	"github.com/lumenfield/swarmview/internal/audio"
	"github.com/lumenfield/swarmview/internal/frame"
	"github.com/lumenfield/swarmview/internal/framestore"
	"github.com/lumenfield/swarmview/internal/musicview"
	"github.com/lumenfield/swarmview/internal/render"
	"github.com/lumenfield/swarmview/internal/transport"
)

// Version is set via ldflags at build time (e.g. -X main.Version=v0.1.0).
var Version = "dev"

// Canvas size for the offscreen renderers. The terminal raster scales
// down from this, so it stays constant across window resizes.
const (
	canvasW = 480
	canvasH = 300
)

// stepInterval is the renderer tick. uiTickInterval is the repaint
// cadence; repainting slower than stepping keeps the TUI output rate
// reasonable while animation state still advances smoothly.
const (
	stepInterval   = 50 * time.Millisecond
	uiTickInterval = 100 * time.Millisecond
)

func parseViewFlag(s string) (viewID, error) {
	switch strings.ToLower(s) {
	case "art", "a":
		return viewArt, nil
	case "architecture", "arch":
		return viewArchitecture, nil
	case "music", "m":
		return viewMusic, nil
	case "story", "s":
		return viewStory, nil
	case "status":
		return viewStatus, nil
	default:
		return 0, fmt.Errorf("unknown view %q (valid: art, architecture, music, story, status)", s)
	}
}

func main() {
	// .env is optional; flags and real env always win.
	_ = godotenv.Load()

	defaultBase := os.Getenv("SWARM_API_BASE")
	if defaultBase == "" {
		defaultBase = "http://localhost:8000"
	}

	baseFlag := flag.String("base", defaultBase, "backend base URL")
	replayFlag := flag.String("replay", "", "replay a frame JSON file instead of connecting")
	refreshDur := flag.Duration("refresh", 2*time.Second, "snapshot re-poll interval")
	outFlag := flag.String("out", ".", "directory for PNG and WAV captures")
	viewFlag := flag.String("view", "", "start in specific view (art|architecture|music|story|status)")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("swv %s\n", Version)
		os.Exit(0)
	}

	store := framestore.New()

	var (
		client *transport.Client
		file   *transport.FileSource
		source string
		err    error
	)
	if *replayFlag != "" {
		file, err = transport.NewFileSource(*replayFlag, store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "swv: replay: %v\n", err)
			os.Exit(1)
		}
		source = *replayFlag
	} else {
		client = transport.New(*baseFlag, store)
		client.Start()
		source = *baseFlag
	}

	m := newModel(store, client, file, source, *outFlag)

	if *viewFlag != "" {
		v, err := parseViewFlag(*viewFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "swv: %v\n", err)
			os.Exit(1)
		}
		m.activeView = v
	}

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Renderer loops advance animation state independently of repaints.
	loops := []*render.Loop{
		render.NewLoop(stepInterval, m.art.Step),
		render.NewLoop(stepInterval, m.arch.Step),
		render.NewLoop(stepInterval, m.music.Step),
	}
	for _, l := range loops {
		l.Start()
	}

	// Feed frame-change signals into the TUI.
	go func() {
		for range store.Changed() {
			p.Send(frameChangedMsg{})
		}
	}()

	// Pull fallback: re-fetch the snapshot on an interval. Harmless
	// once push has taken over, since late pull publishes are refused.
	if client != nil {
		go func() {
			ticker := time.NewTicker(*refreshDur)
			defer ticker.Stop()
			for range ticker.C {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = client.FetchSnapshot(ctx)
				cancel()
			}
		}()
	}

	_, runErr := p.Run()

	for _, l := range loops {
		l.Stop()
	}
	if client != nil {
		client.Close()
	}
	if file != nil {
		file.Close()
	}
	m.audio.Close()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "swv: %v\n", runErr)
		os.Exit(1)
	}
}

// --- Messages ---

type frameChangedMsg struct{}

type tickMsg struct{}

type intentSentMsg struct {
	label string
	err   error
}

type captureDoneMsg struct {
	path string
	err  error
}

// --- Key bindings ---

type keyMap struct {
	Quit    key.Binding
	Tab     key.Binding
	Section key.Binding
	Audio   key.Binding
	Mute    key.Binding
	Record  key.Binding
	Capture key.Binding
	Open    key.Binding
	Privacy key.Binding
	Circ    key.Binding
	Help    key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
	Section: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "section cut")),
	Audio:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "enable audio")),
	Mute:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
	Record:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "record audio")),
	Capture: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "capture PNG")),
	Open:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "cycle openness")),
	Privacy: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "cycle privacy")),
	Circ:    key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "cycle circulation")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// viewDigits maps number keys to views for fast navigation. Letters are
// taken by actions, so views use digits.
var viewDigits = map[string]viewID{
	"1": viewArt,
	"2": viewArchitecture,
	"3": viewMusic,
	"4": viewStory,
	"5": viewStatus,
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Audio, k.Capture, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Section, k.Capture, k.Record},
		{k.Audio, k.Mute, k.Open, k.Privacy},
		{k.Circ, k.Help, k.Quit},
	}
}

func contextHelp(v viewID, hasClient bool) string {
	base := "1-5: views | tab: next | c: capture | a: audio | ?: help | q: quit"
	switch v {
	case viewArchitecture:
		if hasClient {
			return "x: section cut | o/p/l: nudge params | " + base
		}
		return "x: section cut | " + base
	case viewMusic:
		return "m: mute | r: record | " + base
	default:
		return base
	}
}

// --- Views ---

type viewID int

const (
	viewArt viewID = iota
	viewArchitecture
	viewMusic
	viewStory
	viewStatus
	viewCount
)

func (v viewID) String() string {
	switch v {
	case viewArt:
		return "Art"
	case viewArchitecture:
		return "Architecture"
	case viewMusic:
		return "Music"
	case viewStory:
		return "Story"
	case viewStatus:
		return "Status"
	}
	return "?"
}

// Value cycles for the o/p/l parameter nudges. Canonical orders match
// the backend vocabulary.
var (
	opennessCycle    = []string{"tight", "medium", "open"}
	privacyCycle     = []string{"low", "medium", "high"}
	circulationCycle = []string{"linear", "centralized", "distributed"}
)

// nextInCycle returns the entry after current, wrapping. Unknown
// current starts the cycle from the beginning.
func nextInCycle(cycle []string, current string) string {
	for i, v := range cycle {
		if v == current {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}

// --- Model ---

type uiModel struct {
	store  *framestore.Store
	client *transport.Client // nil in replay mode
	file   *transport.FileSource
	source string
	outDir string

	art   *artview.Renderer
	arch  *archview.Renderer
	music *musicview.Renderer
	audio *audio.Engine

	activeView viewID
	width      int
	height     int

	help     help.Model
	showHelp bool

	lastGen      uint64
	lastAudioGen uint64
	lastFrameAt  time.Time
	recording    bool
	statusNote   string
}

func newModel(store *framestore.Store, client *transport.Client, file *transport.FileSource, source, outDir string) *uiModel {
	return &uiModel{
		store:  store,
		client: client,
		file:   file,
		source: source,
		outDir: outDir,
		art:    artview.New(store, canvasW, canvasH),
		arch:   archview.New(store, canvasW, canvasH),
		music:  musicview.New(store, canvasW, canvasH),
		audio:  audio.NewSpeakerEngine(outDir),
		help:   help.New(),
	}
}

func (m *uiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(uiTickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if v, ok := viewDigits[msg.String()]; ok {
			m.activeView = v
			return m, nil
		}

		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Tab):
			m.activeView = (m.activeView + 1) % viewCount

		case key.Matches(msg, keys.Section):
			m.arch.ToggleSection()

		case key.Matches(msg, keys.Audio):
			if err := m.audio.Enable(); err != nil {
				m.statusNote = fmt.Sprintf("audio: %v", err)
			} else {
				m.statusNote = "audio enabled"
			}

		case key.Matches(msg, keys.Mute):
			m.audio.SetMuted(!m.audio.Muted())

		case key.Matches(msg, keys.Record):
			return m, m.toggleRecording()

		case key.Matches(msg, keys.Capture):
			return m, m.captureActive()

		case key.Matches(msg, keys.Open):
			return m, m.nudge("architecture", "spatial_openness", opennessCycle, string(m.currentParams().Openness))

		case key.Matches(msg, keys.Privacy):
			return m, m.nudge("architecture", "room_privacy", privacyCycle, string(m.currentParams().Privacy))

		case key.Matches(msg, keys.Circ):
			return m, m.nudge("architecture", "circulation_style", circulationCycle, string(m.currentParams().Circulation))

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case frameChangedMsg:
		fr, gen := m.store.Current()
		m.lastGen = gen
		m.lastFrameAt = time.Now()
		// Each music frame sounds exactly once.
		if fr != nil && fr.Music != nil && gen != m.lastAudioGen {
			m.lastAudioGen = gen
			m.audio.PlayNotes(fr.Music.Notes)
		}

	case intentSentMsg:
		if msg.err != nil {
			m.statusNote = fmt.Sprintf("intent: %v", msg.err)
		} else {
			m.statusNote = "sent " + msg.label
		}

	case captureDoneMsg:
		if msg.err != nil {
			m.statusNote = fmt.Sprintf("capture: %v", msg.err)
		} else {
			m.statusNote = "saved " + msg.path
		}

	case tickMsg:
		return m, tickEvery()
	}

	return m, nil
}

// currentParams returns the canonical layout parameters of the current
// frame, defaults included.
func (m *uiModel) currentParams() frame.Params {
	fr, _ := m.store.Current()
	if fr == nil {
		return (*frame.ArchitectureFrame)(nil).Canonical()
	}
	return fr.Architecture.Canonical()
}

// nudge posts one parameter cycle step to the backend interpreter.
// Replay mode has no backend, so it is a no-op there.
func (m *uiModel) nudge(domain, field string, cycle []string, current string) tea.Cmd {
	if m.client == nil {
		m.statusNote = "replay mode: no backend to nudge"
		return nil
	}
	value := nextInCycle(cycle, current)
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := client.SendIntent(ctx, transport.Intent{
			Domain:     domain,
			Field:      field,
			Value:      value,
			Confidence: 0.9,
		})
		return intentSentMsg{label: field + "=" + value, err: err}
	}
}

func (m *uiModel) toggleRecording() tea.Cmd {
	if !m.recording {
		if err := m.audio.StartRecording(); err != nil {
			m.statusNote = fmt.Sprintf("record: %v", err)
			return nil
		}
		m.recording = true
		m.statusNote = "recording..."
		return nil
	}
	m.recording = false
	eng := m.audio
	return func() tea.Msg {
		path, err := eng.StopRecording()
		return captureDoneMsg{path: path, err: err}
	}
}

// captureActive writes a PNG of the active view's canvas. Text views
// have no canvas and capture nothing.
func (m *uiModel) captureActive() tea.Cmd {
	var (
		png []byte
		err error
	)
	switch m.activeView {
	case viewArt:
		png, err = m.art.Capture()
	case viewArchitecture:
		png, err = m.arch.Capture()
	case viewMusic:
		png, err = m.music.Capture()
	default:
		m.statusNote = "nothing to capture in this view"
		return nil
	}
	if err != nil {
		m.statusNote = fmt.Sprintf("capture: %v", err)
		return nil
	}

	name := fmt.Sprintf("swarmview-%s-%s.png", strings.ToLower(m.activeView.String()), uuid.NewString())
	path := filepath.Join(m.outDir, name)
	return func() tea.Msg {
		if err := os.WriteFile(path, png, 0o644); err != nil {
			return captureDoneMsg{err: err}
		}
		return captureDoneMsg{path: path}
	}
}
