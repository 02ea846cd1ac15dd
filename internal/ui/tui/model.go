package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/stats"
	"github.com/Rounak-Paul/gbzip/internal/ui"
)

type viewMode int

const (
	viewFeed viewMode = iota
	viewRate
)

// Bubble Tea messages.
type engineEventMsg event.Event
type channelDoneMsg struct{}
type tickMsg time.Time
type saveResultMsg struct{ err error }

// readNextEvent returns a tea.Cmd that blocks on the event channel.
func readNextEvent(ch <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return channelDoneMsg{}
		}
		return engineEventMsg(ev)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// saveModal manages the text input overlay for saving the run report.
type saveModal struct {
	active bool
	input  string
	cursor int
}

func (s *saveModal) insertRune(r rune) {
	s.input = s.input[:s.cursor] + string(r) + s.input[s.cursor:]
	s.cursor++
}

func (s *saveModal) backspace() {
	if s.cursor > 0 {
		s.input = s.input[:s.cursor-1] + s.input[s.cursor:]
		s.cursor--
	}
}

func (s *saveModal) deleteChar() {
	if s.cursor < len(s.input) {
		s.input = s.input[:s.cursor] + s.input[s.cursor+1:]
	}
}

func (s *saveModal) moveLeft() {
	if s.cursor > 0 {
		s.cursor--
	}
}

func (s *saveModal) moveRight() {
	if s.cursor < len(s.input) {
		s.cursor++
	}
}

func (s *saveModal) render() string {
	prompt := styleSavePrompt.Render("Save to: ")
	before := s.input[:s.cursor]
	after := s.input[s.cursor:]
	cursor := styleSaveInput.Render("█")
	return "  " + prompt + styleSaveInput.Render(before) + cursor + styleSaveInput.Render(after)
}

// Model is the root Bubble Tea model.
type Model struct {
	events  <-chan event.Event
	stats   stats.ReadTicker
	workers int
	archive string
	root    string

	mode      viewMode
	feed      feedView
	rate      rateView
	width     int
	height    int
	statusMsg string // transient notification
	done      bool   // operation complete
	quitting  bool

	lastSnap  stats.Snapshot
	lastSpeed float64
	lastETA   time.Duration

	// Save modal.
	save saveModal
}

// NewModel creates a new TUI model.
func NewModel(events <-chan event.Event, collector stats.ReadTicker, workers int, archive, root string) Model {
	return Model{
		events:  events,
		stats:   collector,
		workers: workers,
		archive: archive,
		root:    root,
		feed:    newFeedView(root),
		rate:    newRateView(),
		width:   80,
		height:  24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		readNextEvent(m.events),
		tickCmd(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case engineEventMsg:
		return m.handleEngineEvent(event.Event(msg))

	case channelDoneMsg:
		m.done = true
		m.lastSnap = m.stats.Snapshot()
		m.lastSpeed = m.stats.RollingSpeed(10)
		m.lastETA = 0
		return m, tickCmd()

	case tickMsg:
		m.stats.Tick()
		m.lastSnap = m.stats.Snapshot()
		m.lastSpeed = m.stats.RollingSpeed(10)
		m.lastETA = m.stats.ETA()
		return m, tickCmd()

	case saveResultMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("save failed: %v", msg.err)
		} else {
			m.statusMsg = fmt.Sprintf("saved to %s", m.save.input)
		}
		m.save.active = false
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// When save modal is active, capture all input.
	if m.save.active {
		return m.handleSaveKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "r":
		m.mode = viewRate
		m.statusMsg = ""
		return m, nil

	case "f", "e":
		m.mode = viewFeed
		m.statusMsg = ""
		return m, nil

	// Scroll keys for feed view.
	case "j", "down":
		if m.mode == viewFeed {
			m.feed.scrollDown()
		}
		return m, nil

	case "k", "up":
		if m.mode == viewFeed {
			m.feed.scrollUp()
		}
		return m, nil

	case "G":
		if m.mode == viewFeed {
			m.feed.scrollToBottom()
		}
		return m, nil

	case "g":
		if m.mode == viewFeed {
			m.feed.scrollToTop()
		}
		return m, nil

	case "s":
		if m.done {
			m.save.active = true
			m.save.input = fmt.Sprintf("gbzip-%s.log", time.Now().Format("2006-01-02-150405"))
			m.save.cursor = len(m.save.input)
			m.statusMsg = ""
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleSaveKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.save.active = false
		m.statusMsg = ""
		return m, nil

	case tea.KeyEnter:
		path := m.save.input
		return m, m.writeReport(path)

	case tea.KeyBackspace:
		m.save.backspace()
		return m, nil

	case tea.KeyDelete:
		m.save.deleteChar()
		return m, nil

	case tea.KeyLeft:
		m.save.moveLeft()
		return m, nil

	case tea.KeyRight:
		m.save.moveRight()
		return m, nil

	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.save.insertRune(r)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) writeReport(path string) tea.Cmd {
	// Capture data needed by the goroutine.
	snap := m.lastSnap
	archive := m.archive
	root := m.root
	completed := make([]completedEntry, len(m.feed.completed))
	copy(completed, m.feed.completed)

	return func() tea.Msg {
		var b strings.Builder

		b.WriteString("gbzip run report\n")
		b.WriteString("================\n")
		fmt.Fprintf(&b, "archive:    %s\n", archive)
		fmt.Fprintf(&b, "root:       %s\n", root)
		fmt.Fprintf(&b, "completed:  %s\n", time.Now().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "duration:   %s\n", ui.FormatDuration(snap.Elapsed))
		fmt.Fprintf(&b, "files:      %s\n", ui.FormatCount(snap.FilesDone()))
		fmt.Fprintf(&b, "size:       %s\n", ui.FormatBytes(snap.BytesDone()))
		avgSpeed := 0.0
		if snap.Elapsed.Seconds() > 0 {
			avgSpeed = float64(snap.BytesDone()) / snap.Elapsed.Seconds()
		}
		fmt.Fprintf(&b, "avg speed:  %s\n", ui.FormatRate(avgSpeed))
		if snap.Precompressed > 0 {
			fmt.Fprintf(&b, "pooled:     %s (%.0f%% of original)\n",
				ui.FormatCount(snap.Precompressed), snap.Ratio()*100)
		}
		fmt.Fprintf(&b, "errors:     %d\n", snap.Failed+snap.VerifyFailed)
		b.WriteString("\n--- entries ---\n")

		for _, e := range completed {
			relPath := ui.StripRoot(root, e.path)
			switch {
			case e.failed:
				fmt.Fprintf(&b, "x  %-50s  %s\n", relPath, e.errMsg)
			case e.deleted:
				fmt.Fprintf(&b, "-  %-50s  removed\n", relPath)
			case e.fallback:
				fmt.Fprintf(&b, "-  %-50s  fallback: %s\n", relPath, e.errMsg)
			default:
				fmt.Fprintf(&b, "v  %-50s  %s\n", relPath, ui.FormatBytes(e.size))
			}
		}

		err := os.WriteFile(path, []byte(b.String()), 0o644) //nolint:gosec // user-chosen path for report output
		return saveResultMsg{err: err}
	}
}

func (m Model) handleEngineEvent(ev event.Event) (tea.Model, tea.Cmd) {
	// Counters are written by the engine directly; the model only reads
	// from the collector.

	// Forward to both views so they stay in sync.
	m.feed.handleEvent(ev)
	m.rate.handleEvent(ev)

	return m, readNextEvent(m.events)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	// Header (1 line).
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')

	// Content area.
	contentHeight := m.height - 3 // header (1) + footer (1) + save/status (1)
	if contentHeight < 3 {
		contentHeight = 3
	}

	switch m.mode {
	case viewFeed:
		b.WriteString(m.feed.view(m.width, contentHeight, m.lastSpeed))
	case viewRate:
		b.WriteString(m.rate.view(m.width, contentHeight, m.lastSnap, m.stats, m.workers))
	}

	// Save modal or status message.
	if m.save.active {
		b.WriteString(m.save.render())
		b.WriteByte('\n')
	} else if m.statusMsg != "" {
		b.WriteString(styleStatus.Render("  " + m.statusMsg))
		b.WriteByte('\n')
	} else {
		b.WriteByte('\n')
	}

	// Footer.
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) renderHeader() string {
	snap := m.lastSnap

	var pct float64
	if snap.BytesTotal > 0 {
		pct = float64(snap.BytesDone()) / float64(snap.BytesTotal)
	}

	bar := ui.ProgressBar(pct, 10)

	header := fmt.Sprintf("  %s  %3.0f%%  %s  %s / %s  %s / %s files  eta %s  %dw",
		styleHeaderLabel.Render("gbzip"),
		pct*100,
		styleProgressFilled.Render(bar),
		ui.FormatBytes(snap.BytesDone()),
		ui.FormatBytes(snap.BytesTotal),
		ui.FormatCount(snap.FilesDone()),
		ui.FormatCount(snap.FilesTotal),
		ui.FormatETA(m.lastETA),
		m.workers,
	)

	if m.done {
		header = fmt.Sprintf("  %s  %s  %s  %s / %s files  %s",
			styleHeaderLabel.Render("gbzip"),
			styleIconDone.Render("done"),
			ui.FormatBytes(snap.BytesDone()),
			ui.FormatCount(snap.FilesDone()),
			ui.FormatCount(snap.FilesTotal),
			ui.FormatDuration(snap.Elapsed),
		)
	}

	return styleHeader.Render(header)
}

func (m Model) renderFooter() string {
	type keybind struct {
		key   string
		label string
	}

	var binds []keybind
	if m.done {
		binds = []keybind{
			{"s", "save"},
			{"j/k", "scroll"},
			{"r", "rate"},
			{"f", "feed"},
			{"q", "quit"},
		}
	} else {
		binds = []keybind{
			{"q", "quit"},
			{"r", "rate"},
			{"f", "feed"},
			{"e", "errors"},
			{"j/k", "scroll"},
		}
	}

	var parts []string
	for _, kb := range binds {
		parts = append(parts,
			styleKeybindKey.Render(kb.key)+" "+styleKeybindLabel.Render(kb.label))
	}

	return "  " + strings.Join(parts, "   ")
}
