package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Rounak-Paul/gbzip/internal/config"
	"github.com/Rounak-Paul/gbzip/internal/engine"
	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/stats"
)

var extractDir string

var extractCmd = &cobra.Command{
	Use:           "extract <archive.zip> [dir]",
	Aliases:       []string{"x"},
	Short:         "Extract an archive, restoring entry mtimes",
	Args:          cobra.RangeArgs(1, 2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := extractDir
		if len(args) > 1 {
			if dest != "" {
				return errors.New("destination given twice (-d and a positional directory)")
			}
			dest = args[1]
		}
		if dest == "" {
			dest = "."
		}
		return runExtract(cmd, args[0], dest)
	},
}

func init() {
	extractCmd.Flags().
		StringVarP(&extractDir, "dir", "d", "", "extract into DIR (default: current directory)")
}

// runExtract drives extraction. The extract subcommand and the root -x
// flag both land here.
func runExtract(cmd *cobra.Command, archivePath, dest string) error {
	fileCfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "error", err)
	}
	applyConfigDefaults(cmd, fileCfg.Defaults, nil)

	bwLimit, err := parseBWLimit()
	if err != nil {
		return err
	}

	closeLog, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLog()

	workers := output.workers
	if workers <= 0 {
		workers = engine.DefaultWorkers()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()

	slog.Debug("starting extract",
		"archive", archivePath,
		"dest", dest,
		"workers", workers,
	)

	result := runOp(ctx, stop, fileCfg.Theme, collector, workers, archivePath, dest,
		func(ctx context.Context, events chan<- event.Event) engine.Result {
			return engine.Extract(ctx, engine.ExtractConfig{
				Archive: archivePath,
				Dest:    dest,
				Workers: workers,
				BWLimit: bwLimit,
				Stats:   collector,
				Events:  events,
			})
		})

	if result.Err != nil {
		slog.Error("extract failed", "error", result.Err)
		return &exitError{code: exitCode(ctx, result.Err)}
	}
	return nil
}
