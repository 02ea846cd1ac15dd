package ui

import (
	"fmt"

	"github.com/Rounak-Paul/gbzip/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  files 48,917  size 2.1 GB  avg 641 MB/s  time 3m 17s  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesDone()) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if snap.Failed > 0 || snap.VerifyFailed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  files %s  size %s  avg %s  time %s",
		icon,
		FormatCount(snap.FilesDone()),
		FormatBytes(snap.BytesDone()),
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
	)

	if snap.Precompressed > 0 {
		base += fmt.Sprintf("  pooled %s (%.0f%%)",
			FormatCount(snap.Precompressed), snap.Ratio()*100)
	}

	if snap.Verified > 0 || snap.VerifyFailed > 0 {
		base += fmt.Sprintf("  verified %s", FormatCount(snap.Verified))
	}

	base += fmt.Sprintf("  errors %d", snap.Failed+snap.VerifyFailed)

	return base
}
