package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jacoelho/scesim"
	"github.com/jacoelho/scesim/internal/batch"
	"github.com/jacoelho/scesim/internal/config"
	"github.com/jacoelho/scesim/internal/watch"
)

// errFailed reports that per-file problems were already written to stderr.
var errFailed = errors.New("one or more documents failed")

type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }

func (e usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError{err: err}
		}
		return nil
	}
}

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string
	cpuProfile string
	memProfile string

	cfg            config.Config
	logger         *slog.Logger
	stopCPUProfile func() error
}

func main() {
	os.Exit(run())
}

func run() int {
	return runWithArgs(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func runWithArgs(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	c.finishProfiles()

	var usage usageError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailed):
		return 1
	case errors.As(err, &usage):
		if writeErr := writef(stderr, "error: %v\nRun '%s --help' for usage.\n", err, root.Name()); writeErr != nil {
			return 1
		}
		return 2
	default:
		_ = writef(stderr, "error: %v\n", err)
		return 1
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "scesimmig",
		Short: "Migrate scenario simulation documents to the current version",
		Long: `scesimmig upgrades persisted scenario simulation (.scesim) documents
from any supported historical version to version ` + scesim.CurrentVersion() + `.`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cmd.Usage(); err != nil {
				return err
			}
			return usageErrorf("a command is required")
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to YAML config file")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&c.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&c.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flags.StringVar(&c.memProfile, "memprofile", "", "write memory profile to file")

	root.AddCommand(c.migrateCommand(), c.inspectCommand(), c.watchCommand())
	return root
}

// setup loads the config, applies flag overrides and starts profiling.
func (c *cli) setup() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return usageError{err: err}
	}
	logger, err := cfg.NewLogger(c.stderr)
	if err != nil {
		return usageError{err: err}
	}
	c.cfg = cfg
	c.logger = logger

	if c.cpuProfile != "" {
		stopCPUProfile, err := startCPUProfile(c.cpuProfile)
		if err != nil {
			return fmt.Errorf("start CPU profile: %w", err)
		}
		c.stopCPUProfile = stopCPUProfile
	}
	return nil
}

func (c *cli) finishProfiles() {
	if c.stopCPUProfile != nil {
		if err := c.stopCPUProfile(); err != nil {
			_ = writef(c.stderr, "error stopping CPU profile: %v\n", err)
		}
		c.stopCPUProfile = nil
	}
	if c.memProfile != "" {
		if err := writeMemProfile(c.memProfile); err != nil {
			_ = writef(c.stderr, "error writing memory profile: %v\n", err)
		}
	}
}

func (c *cli) migrator() (*scesim.Migrator, error) {
	return scesim.New(c.cfg.MigratorOptions(c.logger))
}

type migrateFlags struct {
	outDir      string
	inPlace     bool
	check       bool
	concurrency int
}

func (c *cli) migrateCommand() *cobra.Command {
	var f migrateFlags
	cmd := &cobra.Command{
		Use:   "migrate [files...]",
		Short: "Migrate documents, or stdin to stdout when no file is given",
		Args:  usageArgs(cobra.ArbitraryArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.inPlace && f.outDir != "" {
				return usageErrorf("--in-place and --out-dir are mutually exclusive")
			}
			if f.concurrency < 0 {
				return usageErrorf("--concurrency must not be negative")
			}
			if len(args) == 0 {
				return c.migrateStdin(f)
			}
			if len(args) > 1 && !f.inPlace && !f.check && f.outDir == "" {
				return usageErrorf("migrating %d files needs --out-dir, --in-place or --check", len(args))
			}
			return c.migrateFiles(cmd.Context(), args, f)
		},
	}
	cmd.Flags().StringVar(&f.outDir, "out-dir", "", "write migrated documents to this directory")
	cmd.Flags().BoolVar(&f.inPlace, "in-place", false, "rewrite documents that change")
	cmd.Flags().BoolVar(&f.check, "check", false, "report documents that need migration and exit 1 if any do")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "files migrated in parallel (default from config)")
	return cmd
}

func (c *cli) migrateStdin(f migrateFlags) error {
	if isTerminal(c.stdin) {
		return usageErrorf("no input files and stdin is a terminal")
	}
	if f.inPlace || f.outDir != "" {
		return usageErrorf("--in-place and --out-dir need file arguments")
	}
	m, err := c.migrator()
	if err != nil {
		return err
	}
	if !f.check {
		return m.MigrateReader(c.stdin, c.stdout)
	}
	res, err := m.MigrateFrom(c.stdin)
	if err != nil {
		return err
	}
	res.Path = "stdin"
	if err := c.report(res, f); err != nil {
		return err
	}
	if res.Stale {
		return errFailed
	}
	return nil
}

func (c *cli) migrateFiles(ctx context.Context, paths []string, f migrateFlags) error {
	m, err := c.migrator()
	if err != nil {
		return err
	}
	if f.outDir != "" {
		if err := os.MkdirAll(f.outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	limit := f.concurrency
	if limit == 0 {
		limit = c.cfg.Concurrency
	}

	results := batch.Run(ctx, paths, limit, func(_ context.Context, path string) (scesim.Result, error) {
		res, err := m.MigrateFile(path)
		if err != nil || f.check {
			return res, err
		}
		switch {
		case f.inPlace:
			err = writeInPlace(res)
		case f.outDir != "":
			err = writeDocument(filepath.Join(f.outDir, filepath.Base(path)), res.Output, 0o644)
		}
		return res, err
	})

	for _, r := range results {
		if r.Err != nil {
			if err := writef(c.stderr, "error: %v\n", r.Err); err != nil {
				return err
			}
			continue
		}
		if err := c.report(r.Value, f); err != nil {
			return err
		}
	}
	if len(batch.Failed(results)) > 0 {
		return errFailed
	}
	if f.check && slices.ContainsFunc(results, func(r batch.Result[scesim.Result]) bool { return r.Value.Stale }) {
		return errFailed
	}
	return nil
}

// report writes one line per document. A document is stale when its version
// needs steps; a current document whose layout would change is not.
func (c *cli) report(res scesim.Result, f migrateFlags) error {
	switch {
	case f.check && res.Stale:
		return writef(c.stdout, "%s needs migration (%s -> %s)\n", res.Path, res.From, res.To)
	case f.check && res.Changed:
		return writef(c.stdout, "%s is up to date (layout differs)\n", res.Path)
	case f.check:
		return writef(c.stdout, "%s is up to date\n", res.Path)
	case f.inPlace && res.Stale:
		return writef(c.stdout, "%s migrated %s -> %s\n", res.Path, res.From, res.To)
	case f.inPlace && res.Changed:
		return writef(c.stdout, "%s reformatted\n", res.Path)
	case f.inPlace:
		return writef(c.stdout, "%s is up to date\n", res.Path)
	case f.outDir != "":
		return writef(c.stdout, "%s migrated %s -> %s into %s\n", res.Path, res.From, res.To, f.outDir)
	default:
		_, err := io.WriteString(c.stdout, res.Output)
		return err
	}
}

func (c *cli) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the declared version and the steps a migration would run",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(_ *cobra.Command, args []string) error {
			m, err := c.migrator()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read scesim file %s: %w", args[0], err)
			}
			plan, err := m.Plan(string(data))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			steps := "none"
			if !plan.UpToDate() {
				steps = strings.Join(plan.Steps, ", ")
			}
			return errors.Join(
				writef(c.stdout, "file: %s\n", args[0]),
				writef(c.stdout, "version: %s\n", plan.From),
				writef(c.stdout, "current: %s\n", plan.Current),
				writef(c.stdout, "steps: %s\n", steps),
			)
		},
	}
}

func (c *cli) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Migrate matching documents in place as they are created or written",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.migrator()
			if err != nil {
				return err
			}
			handler := func(ctx context.Context, paths []string) {
				results := batch.Run(ctx, paths, c.cfg.Concurrency, func(_ context.Context, path string) (scesim.Result, error) {
					res, err := m.MigrateFile(path)
					if err != nil {
						return res, err
					}
					return res, writeInPlace(res)
				})
				for _, r := range results {
					switch {
					case r.Err != nil:
						c.logger.Error("migration failed", "path", r.Path, "error", r.Err)
					case r.Value.Changed:
						c.logger.Info("document migrated", "path", r.Path, "from", r.Value.From, "to", r.Value.To)
					default:
						c.logger.Debug("document up to date", "path", r.Path)
					}
				}
			}
			w, err := watch.New(args[0], watch.Options{
				Match:    c.cfg.MatchesExtension,
				Logger:   c.logger,
				Debounce: c.cfg.Watch.Debounce,
			}, handler)
			if err != nil {
				return err
			}
			c.logger.Info("watching", "dir", args[0], "extensions", c.cfg.Extensions)
			return w.Run(cmd.Context())
		},
	}
}

// writeInPlace rewrites the migrated file when its contents change. Unchanged
// files are not touched, so a watcher sees no further event for them.
func writeInPlace(res scesim.Result) error {
	if !res.Changed {
		return nil
	}
	info, err := os.Stat(res.Path)
	if err != nil {
		return fmt.Errorf("stat scesim file %s: %w", res.Path, err)
	}
	return writeDocument(res.Path, res.Output, info.Mode().Perm())
}

func writeDocument(path, doc string, perm os.FileMode) error {
	if err := os.WriteFile(path, []byte(doc), perm); err != nil {
		return fmt.Errorf("write scesim file %s: %w", path, err)
	}
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}

func startCPUProfile(path string) (func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpu profile %s: %w", path, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		if closeErr := f.Close(); closeErr != nil {
			return nil, fmt.Errorf("start cpu profile %s: %w (close failed: %w)", path, err, closeErr)
		}
		return nil, fmt.Errorf("start cpu profile %s: %w", path, err)
	}
	return func() error {
		pprof.StopCPUProfile()
		if err := f.Close(); err != nil {
			return fmt.Errorf("close cpu profile %s: %w", path, err)
		}
		return nil
	}, nil
}

func writeMemProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create mem profile %s: %w", path, err)
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		if closeErr := f.Close(); closeErr != nil {
			return fmt.Errorf("write mem profile %s: %w (close failed: %w)", path, err, closeErr)
		}
		return fmt.Errorf("write mem profile %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close mem profile %s: %w", path, err)
	}
	return nil
}
