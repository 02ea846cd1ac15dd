package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/ui"
)

type pooledEntry struct {
	path     string
	size     int64
	workerID int
}

type completedEntry struct {
	path     string
	size     int64
	deleted  bool
	fallback bool
	failed   bool
	errMsg   string
}

type errorEntry struct {
	path string
	size int64
	err  string
	time time.Time
}

type feedView struct {
	pooled       []pooledEntry // files finished by the compression pool
	poolTotal    int64
	poolActive   bool
	completed    []completedEntry // unbounded history
	errors       []errorEntry     // never evicted
	root         string
	scrollOffset int  // viewport offset into completed list
	autoScroll   bool // follow new entries
}

func newFeedView(root string) feedView {
	return feedView{
		root:       root,
		autoScroll: true,
	}
}

func (f *feedView) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.CompressStarted:
		f.poolActive = true
		f.poolTotal = ev.Total

	case event.FileCompressed:
		f.pooled = append(f.pooled, pooledEntry{
			path:     ev.Path,
			size:     ev.Size,
			workerID: ev.WorkerID,
		})

	case event.CompressComplete:
		f.poolActive = false

	case event.CompressFallback:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		f.addCompleted(completedEntry{
			path:     ev.Path,
			size:     ev.Size,
			fallback: true,
			errMsg:   errMsg,
		})

	case event.FileAdded, event.EntryExtracted:
		f.addCompleted(completedEntry{
			path: ev.Path,
			size: ev.Size,
		})

	case event.FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		f.addCompleted(completedEntry{
			path:   ev.Path,
			size:   ev.Size,
			failed: true,
			errMsg: errMsg,
		})
		f.errors = append(f.errors, errorEntry{
			path: ev.Path,
			size: ev.Size,
			err:  errMsg,
			time: ev.Timestamp,
		})

	case event.EntryDeleted:
		f.addCompleted(completedEntry{
			path:    ev.Path,
			deleted: true,
		})

	case event.VerifyFailed:
		f.errors = append(f.errors, errorEntry{
			path: ev.Path,
			err:  "CHECKSUM MISMATCH",
			time: ev.Timestamp,
		})
	}
}

func (f *feedView) addCompleted(e completedEntry) {
	f.completed = append(f.completed, e)
	// If autoScroll, keep viewport pinned to bottom.
	// The actual clamping happens in view().
}

// scrollDown moves the viewport down one line and disables autoScroll.
func (f *feedView) scrollDown() {
	f.autoScroll = false
	f.scrollOffset++
}

// scrollUp moves the viewport up one line and disables autoScroll.
func (f *feedView) scrollUp() {
	f.autoScroll = false
	if f.scrollOffset > 0 {
		f.scrollOffset--
	}
}

// scrollToTop jumps to the first completed entry.
func (f *feedView) scrollToTop() {
	f.autoScroll = false
	f.scrollOffset = 0
}

// scrollToBottom jumps to the most recent completed entry and re-enables autoScroll.
func (f *feedView) scrollToBottom() {
	f.autoScroll = true
}

func (f *feedView) view(width, height int, speed float64) string {
	if width < 20 {
		width = 20
	}

	// Reserve space: 1 divider per visible section.
	// Pool: capped at min(len, height/3), hidden once the pool finishes.
	// Errors: capped at min(len, 5).
	// Completed: fills remaining space.

	maxPool := height / 3
	if maxPool < 1 {
		maxPool = 1
	}
	poolCount := 0
	if f.poolActive {
		poolCount = len(f.pooled)
		if poolCount > maxPool {
			poolCount = maxPool
		}
	}

	maxErrors := 5
	errCount := len(f.errors)
	if errCount > maxErrors {
		errCount = maxErrors
	}

	// Calculate divider lines needed.
	dividers := 0
	if poolCount > 0 {
		dividers++
	}
	if errCount > 0 {
		dividers++
	}
	if len(f.completed) > 0 {
		dividers++
	}

	completedHeight := height - poolCount - errCount - dividers
	if completedHeight < 1 {
		completedHeight = 1
	}

	// Clamp scroll offset.
	maxOffset := len(f.completed) - completedHeight
	if maxOffset < 0 {
		maxOffset = 0
	}
	if f.autoScroll {
		f.scrollOffset = maxOffset
	}
	if f.scrollOffset > maxOffset {
		f.scrollOffset = maxOffset
	}
	if f.scrollOffset < 0 {
		f.scrollOffset = 0
	}

	var b strings.Builder

	// Section 1: pool activity while pre-compression is running.
	poolLines := f.renderPool(width, poolCount)
	if poolLines != "" {
		label := fmt.Sprintf("─ pool (%d/%d)", len(f.pooled), f.poolTotal)
		b.WriteString(styleDivider.Render(label))
		b.WriteByte('\n')
		b.WriteString(poolLines)
	}

	// Section 2: Completed (scrollable viewport).
	completedLines := f.renderCompletedViewport(width, completedHeight, speed)
	if completedLines != "" {
		label := fmt.Sprintf("─ completed (%d)", len(f.completed))
		b.WriteString(styleDivider.Render(label))
		b.WriteByte('\n')
		b.WriteString(completedLines)
	}

	// Section 3: Errors (pinned at bottom).
	errorLines := f.renderErrors(width, errCount)
	if errorLines != "" {
		label := fmt.Sprintf("─ errors (%d)", len(f.errors))
		b.WriteString(styleDivider.Render(label))
		b.WriteByte('\n')
		b.WriteString(errorLines)
	}

	return b.String()
}

func (f *feedView) renderPool(width, maxLines int) string {
	if maxLines == 0 || len(f.pooled) == 0 {
		return ""
	}

	// Tail of the pooled list: the most recent completions.
	start := len(f.pooled) - maxLines
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	for _, e := range f.pooled[start:] {
		line := fmt.Sprintf("  %s  %s  %s  %s",
			stylePool.Render("⟩"),
			f.styledPath(e.path),
			styleFileSize.Render(ui.FormatBytes(e.size)),
			styleFileDir.Render(fmt.Sprintf("w%d", e.workerID)),
		)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *feedView) renderCompletedViewport(width, viewportHeight int, speed float64) string {
	if len(f.completed) == 0 {
		return ""
	}

	var b strings.Builder
	end := f.scrollOffset + viewportHeight
	if end > len(f.completed) {
		end = len(f.completed)
	}
	start := f.scrollOffset
	if start < 0 {
		start = 0
	}

	for _, e := range f.completed[start:end] {
		var icon, extra string
		path := f.styledPath(e.path)
		sizeStr := styleFileSize.Render(fmt.Sprintf("%10s", ui.FormatBytes(e.size)))

		switch {
		case e.failed:
			icon = styleIconFailed.Render("✗")
			extra = styleError.Render(e.errMsg)
		case e.deleted:
			icon = styleIconMuted.Render("×")
			extra = styleIconMuted.Render("removed")
		case e.fallback:
			icon = styleIconMuted.Render("–")
			extra = styleIconMuted.Render("fallback: " + e.errMsg)
		default:
			icon = styleIconDone.Render("✓")
			if speed > 0 {
				extra = styleFileSpeed.Render(ui.FormatRate(speed))
			}
		}

		line := fmt.Sprintf("  %s  %s  %s", icon, path, sizeStr)
		if extra != "" {
			line += "  " + extra
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *feedView) renderErrors(width, maxLines int) string {
	if len(f.errors) == 0 {
		return ""
	}

	var b strings.Builder
	// Show the most recent errors (tail).
	start := len(f.errors) - maxLines
	if start < 0 {
		start = 0
	}
	for _, e := range f.errors[start:] {
		path := styleErrorPath.Render(ui.StripRoot(f.root, e.path))
		errMsg := styleError.Render(e.err)
		line := fmt.Sprintf("  %s  %s  %s", styleIconFailed.Render("✗"), path, errMsg)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (f *feedView) styledPath(path string) string {
	path = ui.StripRoot(f.root, path)
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "." || dir == "" {
		return styleFilePath.Render(base)
	}
	return styleFileDir.Render(dir+"/") + styleFilePath.Render(base)
}
