package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Rounak-Paul/gbzip/internal/archive"
	"github.com/Rounak-Paul/gbzip/internal/config"
	"github.com/Rounak-Paul/gbzip/internal/engine"
	"github.com/Rounak-Paul/gbzip/internal/event"
	"github.com/Rounak-Paul/gbzip/internal/stats"
	"github.com/Rounak-Paul/gbzip/internal/ui"
	"github.com/Rounak-Paul/gbzip/internal/ui/tui"
)

var version = "dev"

// Exit codes. Scripts depend on these staying put.
const (
	exitOK          = 0
	exitUsage       = 1
	exitFS          = 2
	exitArchive     = 3
	exitInterrupted = 4
)

func main() {
	code := run()
	archive.CleanupTmp()
	os.Exit(code)
}

// outputFlags are the presentation and pipeline knobs shared by every
// operating subcommand. They are registered persistent on the root command.
type outputFlags struct {
	workers    int
	bwLimit    string
	quiet      bool
	verbose    bool
	logFile    string
	feed       bool
	rate       bool
	noProgress bool
	tui        bool
}

var output outputFlags

func registerOutputFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		IntVar(&output.workers, "workers", 0, "pre-compression and extraction workers (default: one per core)")
	cmd.PersistentFlags().StringVar(&output.bwLimit, "bwlimit", "", "limit read bandwidth (e.g. 100M, 1G)")
	cmd.PersistentFlags().BoolVarP(&output.quiet, "quiet", "q", false, "suppress all output except errors")
	cmd.PersistentFlags().BoolVarP(&output.verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&output.logFile, "log", "", "write structured JSON log to FILE")
	cmd.PersistentFlags().BoolVar(&output.feed, "feed", false, "force feed mode (one line per file)")
	cmd.PersistentFlags().BoolVar(&output.rate, "rate", false, "force rate mode (sparkline + throughput)")
	cmd.PersistentFlags().BoolVar(&output.noProgress, "no-progress", false, "disable progress display")
	cmd.PersistentFlags().BoolVar(&output.tui, "tui", false, "full-screen TUI (Bubble Tea) for large trees")
}

// archiveFlags shape create and update runs. The root command and the update
// subcommand register separate copies.
type archiveFlags struct {
	recursive  bool
	junkPaths  bool
	level      int
	store      bool
	best       bool
	method     string
	ignoreFile string
	noIgnore   bool
	excludes   []string
	test       bool
	dryRun     bool
}

func registerArchiveFlags(cmd *cobra.Command, af *archiveFlags) {
	cmd.Flags().BoolVarP(&af.recursive, "recursive", "r", true, "recurse into directories")
	cmd.Flags().
		BoolVarP(&af.junkPaths, "junk-paths", "j", false, "junk directory names, storing basenames only")
	cmd.Flags().IntVar(&af.level, "level", archive.DefaultLevel, "compression level (0 = store, 1..9)")
	cmd.Flags().
		BoolVarP(&af.store, "store", "0", false, "store entries without compression (same as --level 0)")
	cmd.Flags().BoolVarP(&af.best, "best", "9", false, "compress harder (same as --level 9)")
	cmd.Flags().StringVar(&af.method, "method", "deflate", "compression method: deflate or zstd")
	cmd.Flags().StringVarP(&af.ignoreFile, "ignore-file", "I", "", "use FILE instead of ~/.zipignore")
	cmd.Flags().
		BoolVar(&af.noIgnore, "no-ignore", false, "skip every .zipignore file (-e overrides still apply)")
	cmd.Flags().
		VarP(&excludeList{patterns: &af.excludes}, "exclude", "e", "exclude files matching PATTERN (repeatable)")
	cmd.Flags().
		BoolVarP(&af.test, "test", "T", false, "verify archive entries against sources after writing")
	cmd.Flags().BoolVarP(&af.dryRun, "dry-run", "n", false, "show what would be archived without writing")
}

// excludeList is a custom pflag.Value collecting -e/--exclude patterns in
// command-line order, the order the override tail applies them in.
type excludeList struct {
	patterns *[]string
}

var _ pflag.Value = (*excludeList)(nil)

func (*excludeList) String() string { return "" }
func (*excludeList) Type() string   { return "pattern" }

func (e *excludeList) Set(val string) error {
	if val == "" {
		return errors.New("empty pattern")
	}
	*e.patterns = append(*e.patterns, val)
	return nil
}

func run() int {
	var (
		af          archiveFlags
		updateFlag  bool
		extractFlag bool
		showVersion bool
	)

	rootCmd := &cobra.Command{
		Use:   "gbzip [flags] <archive.zip> [paths...]",
		Short: "Zip directory trees, honoring .zipignore rules, with parallel pre-compression",
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "gbzip %s\n", version)
				return nil
			}
			if extractFlag && updateFlag {
				return errors.New("cannot combine -x/--extract with -u/--update")
			}
			if extractFlag {
				dest := "."
				if len(args) > 1 {
					dest = args[1]
				}
				return runExtract(cmd, args[0], dest)
			}
			sources := args[1:]
			if len(sources) == 0 {
				sources = []string{"."}
			}
			return runArchive(cmd, &af, args[0], sources, updateFlag)
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.Flags().BoolVarP(&updateFlag, "update", "u", false, "rewrite only changed or new entries")
	rootCmd.Flags().
		BoolVarP(&extractFlag, "extract", "x", false, "extract the archive instead of creating it")
	registerArchiveFlags(rootCmd, &af)
	registerOutputFlags(rootCmd)

	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(docsCmd)

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			if exitErr.err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", exitErr.err)
			}
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}

	return exitOK
}

// runArchive drives create and update runs. The update subcommand and the
// -u flag both land here.
func runArchive(cmd *cobra.Command, af *archiveFlags, archivePath string, sources []string, update bool) error {
	fileCfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "error", err)
	}
	applyConfigDefaults(cmd, fileCfg.Defaults, af)

	level, err := resolveLevel(cmd, af)
	if err != nil {
		return err
	}
	method, err := archive.ParseMethod(af.method)
	if err != nil {
		return err
	}
	if level == 0 {
		method = archive.MethodStore
	}
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
	if af.dryRun {
		slog.Info("dry run mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()
	engineCfg := engine.Config{
		Archive:    archivePath,
		Sources:    sources,
		Recursive:  af.recursive,
		JunkPaths:  af.junkPaths,
		Method:     method,
		Level:      level,
		Workers:    workers,
		IgnoreFile: af.ignoreFile,
		NoIgnore:   af.noIgnore,
		Excludes:   af.excludes,
		BWLimit:    bwLimit,
		DryRun:     af.dryRun,
		Test:       af.test,
		Stats:      collector,
	}

	slog.Debug("starting archive",
		"archive", archivePath,
		"sources", sources,
		"method", archive.MethodName(method),
		"level", level,
		"workers", workers,
		"update", update,
	)

	result := runOp(ctx, stop, fileCfg.Theme, collector, workers, archivePath, sourceDisplay(sources),
		func(ctx context.Context, events chan<- event.Event) engine.Result {
			engineCfg.Events = events
			if update {
				return engine.Update(ctx, engineCfg)
			}
			return engine.Create(ctx, engineCfg)
		})

	if result.Changes != nil && !output.quiet {
		fmt.Fprintf(os.Stderr, "update: %d added, %d modified, %d deleted\n",
			result.Changes.Added, result.Changes.Modified, result.Changes.Deleted)
	}
	if result.Err != nil {
		slog.Error("archive failed", "error", result.Err)
		return &exitError{code: exitCode(ctx, result.Err)}
	}
	return nil
}

// runOp wires the event channel, the optional JSON tee, and the chosen
// presenter around a blocking engine operation. TUI mode keeps the
// foreground for Bubble Tea; inline presenters run beside the engine.
func runOp(
	ctx context.Context,
	stop context.CancelFunc,
	theme config.ThemeConfig,
	collector *stats.Collector,
	workers int,
	archivePath, rootDisplay string,
	op func(context.Context, chan<- event.Event) engine.Result,
) engine.Result {
	events := make(chan event.Event, 256)

	// With --log, tee events through a goroutine that writes structured
	// records before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(events)
	if output.logFile != "" {
		teed := make(chan event.Event, 256)
		go func() {
			for ev := range events {
				attrs := []slog.Attr{
					slog.String("type", ev.Type.String()),
					slog.String("path", ev.Path),
					slog.Int64("size", ev.Size),
					slog.Int("worker", ev.WorkerID),
				}
				if ev.Error != nil {
					attrs = append(attrs, slog.String("error", ev.Error.Error()))
				}
				slog.LogAttrs(context.Background(), slog.LevelDebug, "gbzip.event", attrs...)
				teed <- ev
			}
			close(teed)
		}()
		presenterEvents = teed
	}

	isTTY := ui.IsTTY(os.Stderr.Fd())
	useTUI := output.tui && isTTY

	var presenter ui.Presenter
	if useTUI {
		presenter = tui.NewPresenter(tui.Config{
			Stats:   collector,
			Workers: workers,
			Archive: archivePath,
			Root:    rootDisplay,
			Theme:   theme,
		})
	} else {
		if output.tui {
			slog.Warn("--tui requires a terminal, falling back to inline output")
		}
		presenter = ui.NewPresenter(ui.Config{
			Writer:     os.Stdout,
			ErrWriter:  os.Stderr,
			Stats:      collector,
			Root:       rootDisplay,
			Workers:    workers,
			IsTTY:      isTTY,
			Quiet:      output.quiet,
			Verbose:    output.verbose,
			ForceFeed:  output.feed,
			ForceRate:  output.rate,
			NoProgress: output.noProgress,
		})
	}

	var result engine.Result
	if useTUI {
		// TUI mode: engine in the background, Bubble Tea in the
		// foreground so it owns stdin.
		engineCtx, engineCancel := context.WithCancel(ctx)
		defer engineCancel()

		var engineWg sync.WaitGroup
		engineWg.Add(1)
		go func() {
			defer engineWg.Done()
			result = op(engineCtx, events)
			close(events)
		}()

		_ = presenter.Run(presenterEvents) //nolint:errcheck // presenter error is non-fatal

		// User quit the TUI: cancel the engine if it is still running.
		engineCancel()
		engineWg.Wait()
		stop()
	} else {
		var presenterErr error
		var presenterWg sync.WaitGroup
		presenterWg.Add(1)
		go func() {
			defer presenterWg.Done()
			presenterErr = presenter.Run(presenterEvents)
		}()

		result = op(ctx, events)
		stop()
		close(events)
		presenterWg.Wait()
		if presenterErr != nil {
			fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
		}
	}

	if !output.quiet {
		if summary := presenter.Summary(); summary != "" {
			fmt.Fprintln(os.Stderr, summary)
		}
	}
	return result
}

// setupLogging installs the default logger: text on stderr at a level
// driven by -q/-v, plus a JSON handler at debug when --log names a file.
// The returned func closes the log file.
func setupLogging() (func(), error) {
	logLevel := slog.LevelWarn
	if output.verbose {
		logLevel = slog.LevelDebug
	} else if !output.quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})

	var handler slog.Handler = textHandler
	closer := func() {}
	if output.logFile != "" {
		lf, err := os.Create(output.logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		closer = func() { _ = lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		handler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(handler))
	return closer, nil
}

// applyConfigDefaults applies config file defaults for flags not set
// explicitly on the command line. af is nil for operations that do not
// shape archives.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, af *archiveFlags) {
	flags := cmd.Flags()
	if !flags.Changed("workers") && defaults.Workers != nil {
		output.workers = *defaults.Workers
	}
	if !flags.Changed("bwlimit") && defaults.BWLimit != nil {
		output.bwLimit = *defaults.BWLimit
	}
	if !flags.Changed("quiet") && defaults.Quiet != nil {
		output.quiet = *defaults.Quiet
	}
	if !flags.Changed("no-progress") && defaults.Progress != nil {
		output.noProgress = !*defaults.Progress
	}
	if !flags.Changed("tui") && defaults.TUI != nil {
		output.tui = *defaults.TUI
	}
	if af == nil {
		return
	}
	if !flags.Changed("level") && defaults.Level != nil {
		af.level = *defaults.Level
	}
	if !flags.Changed("method") && defaults.Method != nil {
		af.method = *defaults.Method
	}
	if !flags.Changed("test") && defaults.Verify != nil {
		af.test = *defaults.Verify
	}
}

// resolveLevel folds the -0/-9 shorthands into the level setting. An
// explicit --level wins over the shorthands.
func resolveLevel(cmd *cobra.Command, af *archiveFlags) (int, error) {
	if af.store && af.best {
		return 0, errors.New("cannot combine -0/--store with -9/--best")
	}
	level := af.level
	if !cmd.Flags().Changed("level") {
		switch {
		case af.store:
			level = 0
		case af.best:
			level = 9
		}
	}
	if level < 0 || level > 9 {
		return 0, fmt.Errorf("invalid compression level %d (use 0..9)", level)
	}
	return level, nil
}

func parseBWLimit() (int64, error) {
	if output.bwLimit == "" {
		return 0, nil
	}
	n, err := parseSize(output.bwLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid --bwlimit: %w", err)
	}
	return n, nil
}

func sourceDisplay(sources []string) string {
	if len(sources) > 1 {
		return fmt.Sprintf("%s (+%d more)", sources[0], len(sources)-1)
	}
	return sources[0]
}

// exitCode classifies a failed run. Aggregated errors keep the first
// failure in their chain, so classification follows the first thing that
// went wrong. Container identity is checked before the file-system
// sentinels because container errors usually wrap an os error too.
func exitCode(ctx context.Context, err error) int {
	switch {
	case err == nil:
		return exitOK
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, archive.ErrContainer),
		errors.Is(err, zip.ErrFormat),
		errors.Is(err, zip.ErrAlgorithm),
		errors.Is(err, zip.ErrChecksum):
		return exitArchive
	case errors.Is(err, archive.ErrSource),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		return exitFS
	default:
		return exitFS
	}
}

// exitError carries a process exit code through cobra. err, when set, is
// printed by the top-level handler; operations that already logged their
// failure leave it nil.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit code %d", e.code)
}
