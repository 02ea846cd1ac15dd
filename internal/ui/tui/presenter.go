package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rounak-Paul/gbzip/internal/config"
	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/stats"
	"github.com/Rounak-Paul/gbzip/internal/ui"
)

// Config configures the TUI presenter.
type Config struct {
	Stats   stats.ReadTicker
	Workers int
	Archive string
	Root    string
	Theme   config.ThemeConfig
}

// Presenter wraps a Bubble Tea program and implements ui.Presenter.
type Presenter struct {
	cfg   Config
	model Model
}

// NewPresenter creates a new TUI presenter.
func NewPresenter(cfg Config) *Presenter {
	ApplyTheme(cfg.Theme)
	return &Presenter{cfg: cfg}
}

// Run starts the Bubble Tea program and blocks until done.
func (p *Presenter) Run(events <-chan event.Event) error {
	p.model = NewModel(events, p.cfg.Stats, p.cfg.Workers, p.cfg.Archive, p.cfg.Root)
	prog := tea.NewProgram(
		p.model,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)
	finalModel, err := prog.Run()
	if err != nil {
		return err
	}
	p.model = finalModel.(Model)
	return nil
}

// Summary returns the final completion summary line.
func (p *Presenter) Summary() string {
	return ui.CompletionSummary(p.cfg.Stats.Snapshot())
}
