package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/Rounak-Paul/gbzip/internal/stats"
)

// plainPresenter outputs one line per archived entry to stdout,
// and periodic progress to stderr when not a TTY.
type plainPresenter struct {
	w       io.Writer
	errW    io.Writer
	stats   stats.ReadTicker
	root    string
	verbose bool
}

func (p *plainPresenter) Run(events <-chan Event) error {
	secTicker := time.NewTicker(1 * time.Second)
	defer secTicker.Stop()

	progressTicker := time.NewTicker(5 * time.Second)
	defer progressTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-secTicker.C:
			p.stats.Tick()
		case <-progressTicker.C:
			p.printProgress()
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	path := StripRoot(p.root, ev.Path)
	switch ev.Type {
	case FileAdded, EntryExtracted:
		speed := p.stats.RollingSpeed(5)
		fmt.Fprintf(p.w, "%s  %s  %s\n", path, FormatBytes(ev.Size), FormatRate(speed))
	case FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s  %s  %s\n", path, FormatBytes(ev.Size), errMsg)
	case FileIgnored:
		if p.verbose {
			fmt.Fprintf(p.w, "%s  ignored\n", path)
		}
	case CompressStarted:
		fmt.Fprintf(p.w, "compressing %s large files (%s)\n",
			FormatCount(ev.Total), FormatBytes(ev.TotalSize))
	case CompressFallback:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s  fallback: %s\n", path, errMsg)
	case EntryDeleted:
		fmt.Fprintf(p.w, "delete: %s\n", path)
	case VerifyStarted:
		fmt.Fprintln(p.w, "verifying...")
	case VerifyFailed:
		fmt.Fprintf(p.w, "MISMATCH: %s\n", path)
	case VerifyOK:
		// silent in plain mode
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	if snap.BytesTotal > 0 {
		pct := float64(snap.BytesDone()) / float64(snap.BytesTotal) * 100
		speed := p.stats.RollingSpeed(10)
		eta := p.stats.ETA()
		fmt.Fprintf(p.errW, "progress: %.0f%% %s/%s %s/%s files %s eta %s\n",
			pct,
			FormatBytes(snap.BytesDone()), FormatBytes(snap.BytesTotal),
			FormatCount(snap.FilesDone()), FormatCount(snap.FilesTotal),
			FormatRate(speed),
			FormatETA(eta),
		)
	} else {
		fmt.Fprintf(p.errW, "progress: %s in %s files\n",
			FormatBytes(snap.BytesDone()),
			FormatCount(snap.FilesDone()),
		)
	}
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
