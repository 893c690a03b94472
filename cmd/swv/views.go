package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/lumenfield/swarmview/internal/frame"
	"github.com/lumenfield/swarmview/internal/render"
)

// --- Styles ---

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#94E2D5")).
			Background(lipgloss.Color("#1E1E2E")).
			Padding(0, 1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#11111B")).
			Background(lipgloss.Color("#94E2D5")).
			Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6C7086")).
				Background(lipgloss.Color("#313244")).
				Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#89B4FA"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")).
			Bold(true)

	recStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")).
			Bold(true).
			Blink(true)

	storyBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4"))

	storyEnhancedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#CBA6F7")).
				Italic(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#1E1E2E"))
)

// pitchClassNames for chord display.
var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// --- View rendering ---

func (m *uiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderTitleBar())
	b.WriteRune('\n')
	b.WriteString(m.renderTabBar())
	b.WriteRune('\n')

	contentHeight := m.height - 4 // title + tabs + status + padding
	if m.showHelp {
		contentHeight -= 3
	}
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	switch m.activeView {
	case viewArt:
		content = render.Halfblocks(m.art.Surface().Image(), m.width, contentHeight)
	case viewArchitecture:
		content = render.Halfblocks(m.arch.Surface().Image(), m.width, contentHeight)
	case viewMusic:
		content = m.renderMusic(contentHeight)
	case viewStory:
		content = m.renderStory()
	case viewStatus:
		content = m.renderStatus()
	}

	content = clipContent(content, m.width, contentHeight)
	b.WriteString(content)

	// Pad to fill screen.
	rendered := strings.Count(b.String(), "\n")
	for rendered < m.height-2 {
		b.WriteRune('\n')
		rendered++
	}

	if m.showHelp {
		b.WriteString(m.help.View(keys))
	} else {
		b.WriteString(m.renderStatusBar())
	}

	return b.String()
}

func (m *uiModel) renderTitleBar() string {
	title := titleStyle.Render("lumenfield viewer")

	var badges []string
	if m.audio.Enabled() {
		if m.audio.Muted() {
			badges = append(badges, dimStyle.Render("AUDIO MUTED"))
		} else {
			badges = append(badges, valueStyle.Render("AUDIO"))
		}
	}
	if m.recording {
		badges = append(badges, recStyle.Render("REC"))
	}
	if m.lastGen == 0 {
		badges = append(badges, warnStyle.Render("waiting for frames"))
	} else {
		badges = append(badges, dimStyle.Render(fmt.Sprintf("frame %d", m.lastGen)))
	}

	right := strings.Join(badges, " ")
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(title)-lipgloss.Width(right)-1))
	return title + gap + right
}

func (m *uiModel) renderTabBar() string {
	var tabs []string
	for i := viewID(0); i < viewCount; i++ {
		label := fmt.Sprintf("%d %s", int(i)+1, i.String())
		if i == m.activeView {
			tabs = append(tabs, tabActiveStyle.Render(label))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(label))
		}
	}
	return strings.Join(tabs, " ")
}

func (m *uiModel) renderStatusBar() string {
	left := " " + contextHelp(m.activeView, m.client != nil)
	right := m.statusNote
	if right == "" && !m.lastFrameAt.IsZero() {
		right = fmt.Sprintf("last frame %s ago", time.Since(m.lastFrameAt).Truncate(time.Second))
	}
	right += " "
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)))
	return statusBarStyle.Render(left + gap + right)
}

// --- Music view ---

// renderMusic shows the scrolling note canvas with a one-line chord
// footer below it.
func (m *uiModel) renderMusic(contentHeight int) string {
	canvasRows := contentHeight - 1
	if canvasRows < 1 {
		canvasRows = 1
	}
	out := render.Halfblocks(m.music.Surface().Image(), m.width, canvasRows)

	footer := dimStyle.Render("  chord: ")
	if c := m.music.Chord(); c != nil {
		footer += valueStyle.Render(pitchClassNames[((*c%12)+12)%12])
	} else {
		footer += dimStyle.Render("-")
	}
	footer += dimStyle.Render(fmt.Sprintf("   notes in history: %d", m.music.HistoryLen()))

	return out + "\n" + footer
}

// --- Story view ---

func (m *uiModel) renderStory() string {
	fr, _ := m.store.Current()
	var b strings.Builder

	if fr == nil || len(fr.Story) == 0 {
		b.WriteString(dimStyle.Render("  (no story yet)"))
		b.WriteRune('\n')
		return b.String()
	}

	story := frame.DecodeStory(fr.Story)

	header := "Story"
	if story.Phase != "" {
		header += " · " + story.Phase
	}
	b.WriteString(headerStyle.Render(header))
	if story.Meta.Tone != "" || story.Meta.Pace != "" {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  [tone: %s, pace: %s]", story.Meta.Tone, story.Meta.Pace)))
	}
	b.WriteRune('\n')
	b.WriteRune('\n')

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	for _, para := range story.Paragraphs {
		style := storyBodyStyle
		if para.Enhanced {
			style = storyEnhancedStyle
		}
		for _, line := range wrapText(para.Content, width) {
			b.WriteString("  ")
			b.WriteString(style.Render(line))
			b.WriteRune('\n')
		}
		b.WriteRune('\n')
	}

	if len(story.Paragraphs) == 0 {
		b.WriteString(dimStyle.Render("  (story frame carried no paragraphs)"))
		b.WriteRune('\n')
	}

	return b.String()
}

// --- Status view ---

func (m *uiModel) renderStatus() string {
	fr, gen := m.store.Current()
	params := m.currentParams()

	var b strings.Builder
	b.WriteString(headerStyle.Render("Connection"))
	b.WriteRune('\n')
	mode := "live"
	if m.client == nil {
		mode = "replay"
	}
	b.WriteString(fmt.Sprintf("  mode:    %s\n", valueStyle.Render(mode)))
	b.WriteString(fmt.Sprintf("  source:  %s\n", valueStyle.Render(m.source)))
	b.WriteString(fmt.Sprintf("  frames:  %s\n", valueStyle.Render(fmt.Sprintf("%d", gen))))
	if !m.lastFrameAt.IsZero() {
		b.WriteString(fmt.Sprintf("  latest:  %s ago\n", time.Since(m.lastFrameAt).Truncate(time.Second)))
	}
	b.WriteRune('\n')

	b.WriteString(headerStyle.Render("Architecture"))
	b.WriteRune('\n')
	b.WriteString(fmt.Sprintf("  openness:    %s\n", valueStyle.Render(string(params.Openness))))
	b.WriteString(fmt.Sprintf("  privacy:     %s\n", valueStyle.Render(string(params.Privacy))))
	b.WriteString(fmt.Sprintf("  circulation: %s\n", valueStyle.Render(string(params.Circulation))))
	b.WriteString(fmt.Sprintf("  section cut: %v\n", m.arch.SectionEnabled()))
	b.WriteRune('\n')

	b.WriteString(headerStyle.Render("Modalities"))
	b.WriteRune('\n')
	if fr != nil && fr.Art != nil {
		b.WriteString(fmt.Sprintf("  agents: %d (%s)\n", len(fr.Art.Agents), fr.Art.Meta.Mode()))
	} else {
		b.WriteString(dimStyle.Render("  agents: none\n"))
	}
	b.WriteString(fmt.Sprintf("  note history: %d\n", m.music.HistoryLen()))
	b.WriteRune('\n')

	b.WriteString(headerStyle.Render("Audio"))
	b.WriteRune('\n')
	b.WriteString(fmt.Sprintf("  enabled:   %v\n", m.audio.Enabled()))
	b.WriteString(fmt.Sprintf("  muted:     %v\n", m.audio.Muted()))
	b.WriteString(fmt.Sprintf("  recording: %v\n", m.recording))

	return b.String()
}

// --- Helpers ---

// clipContent limits content to the given height and truncates each
// line to the terminal width, ANSI-aware.
func clipContent(content string, width, height int) string {
	lines := strings.Split(content, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, line := range lines {
		if lipgloss.Width(line) > width {
			lines[i] = ansi.Truncate(line, width, "")
		}
	}
	return strings.Join(lines, "\n")
}

// wrapText breaks s into lines of at most width characters, splitting
// on word boundaries where possible.
func wrapText(s string, width int) []string {
	if width <= 0 {
		width = 80
	}
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		lines = append(lines, wrapParagraph(para, width)...)
	}
	return lines
}

func wrapParagraph(s string, width int) []string {
	if len(s) <= width {
		return []string{s}
	}
	var lines []string
	for len(s) > 0 {
		if len(s) <= width {
			lines = append(lines, s)
			break
		}
		cut := -1
		for i := width; i > 0; i-- {
			if s[i] == ' ' {
				cut = i
				break
			}
		}
		if cut <= 0 {
			cut = width
			lines = append(lines, s[:cut])
			s = s[cut:]
		} else {
			lines = append(lines, s[:cut])
			s = s[cut+1:]
		}
	}
	return lines
}
