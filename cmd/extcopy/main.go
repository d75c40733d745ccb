package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/extcopy/internal/config"
	"github.com/bamsammich/extcopy/internal/engine"
	"github.com/bamsammich/extcopy/internal/event"
	"github.com/bamsammich/extcopy/internal/filter"
	"github.com/bamsammich/extcopy/internal/stats"
	"github.com/bamsammich/extcopy/internal/ui"
)

var version = "dev"

const (
	exitFatal       = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

// options holds parsed command-line state.
type options struct {
	source      string
	destination string
	workers     int
	timeout     time.Duration
	verify      bool
	noPreserve  bool
	dryRun      bool
	verbose     bool
	quiet       bool
	bwLimit     string
	filterFile  string
	minSize     string
	maxSize     string
	logFile     string

	chain *filter.Chain
}

// filterFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules by appending to a shared filter.Chain.
type filterFlag struct {
	chain   *filter.Chain
	include bool
}

var _ pflag.Value = (*filterFlag)(nil)

func (*filterFlag) String() string { return "" }
func (*filterFlag) Type() string   { return "pattern" }

func (f *filterFlag) Set(val string) error {
	if f.include {
		return f.chain.AddInclude(val)
	}
	return f.chain.AddExclude(val)
}

func run() int {
	rootCmd := newRootCmd(newOptions())
	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitUsage
	}
	return 0
}

func newOptions() *options {
	return &options{chain: filter.NewChain()}
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "extcopy -s <source> -d <destination> [flags]",
		Short: "Copy a directory tree into folders grouped by file extension",
		Long: `extcopy walks the source tree and copies every regular file into
<destination>/<extension>/<name>. Files without an extension are skipped.
Each copy has its own deadline; a slow or failing file never stops the run.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCopy(cmd, opts)
		},
	}
	rootCmd.SetVersionTemplate("extcopy {{.Version}}\n")

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.source, "source", "s", "", "source directory (or single file)")
	flags.StringVarP(&opts.destination, "destination", "d", "", "destination directory")
	flags.IntVarP(&opts.workers, "workers", "n", 0, "max concurrent copies (0 = unbounded)")
	flags.DurationVar(&opts.timeout, "timeout", engine.DefaultTimeout, "deadline for each file copy")
	flags.BoolVar(&opts.verify, "verify", false, "verify checksums before publishing each copy (BLAKE3)")
	flags.BoolVar(&opts.noPreserve, "no-preserve", false, "don't copy permission bits and timestamps")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "show what would be copied without writing")
	flags.StringVar(&opts.bwLimit, "bwlimit", "", "bandwidth limit across all copies (e.g. 100M, 1G)")
	flags.Var(&filterFlag{chain: opts.chain}, "exclude", "exclude files matching PATTERN (repeatable)")
	flags.Var(&filterFlag{chain: opts.chain, include: true}, "include", "include files matching PATTERN (repeatable)")
	flags.StringVar(&opts.filterFile, "filter", "", "read filter rules from FILE")
	flags.StringVar(&opts.minSize, "min-size", "", "skip files smaller than SIZE (e.g. 1M, 100K)")
	flags.StringVar(&opts.maxSize, "max-size", "", "skip files larger than SIZE (e.g. 1G, 500M)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except warnings and errors")
	flags.StringVar(&opts.logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	for _, name := range []string{"source", "destination"} {
		if err := rootCmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("mark flag required: %v", err))
		}
	}

	rootCmd.AddCommand(newDocsCmd())
	return rootCmd
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: CLI entry point wires config, logging and the run
func runCopy(cmd *cobra.Command, opts *options) error {
	fatal := func(err error) error {
		slog.Error("fatal error", "error", err)
		return &exitError{code: exitFatal, err: err}
	}

	cfg, cfgErr := config.Load()
	applyConfigDefaults(cmd, cfg.Defaults, opts)

	closeLog, err := setupLogging(opts)
	if err != nil {
		return fatal(err)
	}
	defer closeLog()

	if cfgErr != nil {
		slog.Warn("failed to load config", "path", config.Path(), "error", cfgErr)
	}

	var bwLimit int64
	if opts.bwLimit != "" {
		if bwLimit, err = filter.ParseSize(opts.bwLimit); err != nil {
			return fatal(fmt.Errorf("invalid --bwlimit: %w", err))
		}
	}
	if opts.filterFile != "" {
		if err := opts.chain.LoadFile(opts.filterFile); err != nil {
			return fatal(fmt.Errorf("load filter file: %w", err))
		}
	}
	if opts.minSize != "" {
		n, err := filter.ParseSize(opts.minSize)
		if err != nil {
			return fatal(fmt.Errorf("invalid --min-size: %w", err))
		}
		opts.chain.SetMinSize(n)
	}
	if opts.maxSize != "" {
		n, err := filter.ParseSize(opts.maxSize)
		if err != nil {
			return fatal(fmt.Errorf("invalid --max-size: %w", err))
		}
		opts.chain.SetMaxSize(n)
	}
	// Config excludes come after CLI rules so the command line wins.
	for _, p := range cfg.Defaults.Exclude {
		if err := opts.chain.AddExclude(p); err != nil {
			return fatal(fmt.Errorf("config exclude: %w", err))
		}
	}

	color.NoColor = !ui.ColorEnabled(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engineCfg := engine.Config{
		Src:      opts.source,
		Dst:      opts.destination,
		Workers:  opts.workers,
		Timeout:  opts.timeout,
		Preserve: !opts.noPreserve,
		Verify:   opts.verify,
		DryRun:   opts.dryRun,
		BWLimit:  bwLimit,
		Events:   event.NewLogSink(slog.Default()),
		Stats:    stats.NewCollector(),
	}
	if !opts.chain.Empty() {
		engineCfg.Filter = opts.chain
	}

	slog.Debug("run configuration",
		"source", opts.source,
		"destination", opts.destination,
		"workers", opts.workers,
		"timeout", opts.timeout,
		"verify", opts.verify,
		"dry_run", opts.dryRun,
	)

	result := engine.Run(ctx, engineCfg)
	stop()

	switch {
	case errors.Is(result.Err, context.Canceled):
		printSummary(cmd, opts, result.Stats)
		slog.Warn("interrupted by user")
		return &exitError{code: exitInterrupted, err: result.Err}
	case result.Err != nil:
		return fatal(result.Err)
	}

	printSummary(cmd, opts, result.Stats)
	return nil
}

// setupLogging installs the default slog logger: text on stderr plus an
// optional JSON file. The returned func closes the file.
func setupLogging(opts *options) (func(), error) {
	level := slog.LevelInfo
	switch {
	case opts.verbose:
		level = slog.LevelDebug
	case opts.quiet:
		level = slog.LevelWarn
	}

	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	var handler slog.Handler = textHandler
	closeFn := func() {}

	if opts.logFile != "" {
		lf, err := os.Create(opts.logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		closeFn = func() { _ = lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = ui.NewMultiHandler(textHandler, jsonHandler)
	}

	slog.SetDefault(slog.New(handler))
	return closeFn, nil
}

func printSummary(cmd *cobra.Command, opts *options, snap stats.Snapshot) {
	if opts.quiet || opts.dryRun {
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), ui.CompletionSummary(snap))
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, opts *options) {
	changed := cmd.Flags().Changed

	if !changed("workers") && defaults.Workers != nil {
		opts.workers = *defaults.Workers
	}
	if !changed("timeout") && defaults.Timeout != nil {
		opts.timeout = defaults.Timeout.Duration
	}
	if !changed("verify") && defaults.Verify != nil {
		opts.verify = *defaults.Verify
	}
	if !changed("no-preserve") && defaults.Preserve != nil {
		opts.noPreserve = !*defaults.Preserve
	}
	if !changed("bwlimit") && defaults.BWLimit != nil {
		opts.bwLimit = *defaults.BWLimit
	}
	if !changed("log") && defaults.Log != nil {
		opts.logFile = *defaults.Log
	}
}

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

func (e *exitError) Unwrap() error { return e.err }
