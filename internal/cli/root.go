package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/roach88/tead/internal/backend"
	"github.com/roach88/tead/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Storage overrides, applied on top of the loaded configuration.
	Storage     string
	Dir         string
	TraceFormat string
	DB          string
	Redis       string

	// ConfigOptions controls where configuration files are looked up.
	// Tests point it at a temporary directory.
	ConfigOptions config.Options

	config config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tead CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tead",
		Short: "tead - turn recorded calls into Go tests",
		Long: `Inspect, prune and render recorded function calls.

Calls are recorded by instrumenting functions with the tead package.
Each outermost call is stored as one entry holding its arguments and
result. These commands read the configured storage backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd.ErrOrStderr())
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Storage, "storage", "", "storage backend ("+strings.Join(config.Backends, "|")+")")
	flags.StringVar(&opts.Dir, "dir", "", "trace directory for the files backend")
	flags.StringVar(&opts.TraceFormat, "trace-format", "", "trace file format for the files backend (json|cue)")
	flags.StringVar(&opts.DB, "db", "", "database path for the sqlite backend")
	flags.StringVar(&opts.Redis, "redis", "", "server address for the redis backend")

	// Add subcommands
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewGenCommand(opts))
	cmd.AddCommand(NewCleanCommand(opts))

	return cmd
}

// setup loads the configuration, applies flag overrides and builds the
// logger.
func (o *RootOptions) setup(errOut io.Writer) error {
	cfg, err := config.Load(o.ConfigOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if o.Storage != "" {
		cfg.Storage.Backend = o.Storage
	}
	if o.Dir != "" {
		cfg.Storage.Dir = o.Dir
	}
	if o.TraceFormat != "" {
		cfg.Storage.Format = o.TraceFormat
	}
	if o.DB != "" {
		cfg.Storage.DB = o.DB
	}
	if o.Redis != "" {
		cfg.Storage.RedisAddr = o.Redis
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.config = cfg
	o.logger = newLogger(errOut, cfg.Log.Level)
	return nil
}

// newLogger returns a timestamped terminal logger exposed through slog.
func newLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return slog.New(log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           lvl,
	}))
}

// formatter builds the output formatter for one command run.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openBackend opens the configured storage backend.
func (o *RootOptions) openBackend(ctx context.Context, out *OutputFormatter) (backend.Backend, error) {
	out.VerboseLog("Opening %s", backend.Describe(o.config.Storage))
	b, err := backend.Open(ctx, o.config.Storage, o.logger)
	if err != nil {
		return nil, out.Fail(ExitCommandError, CodeBackend, "failed to open storage", err)
	}
	return b, nil
}
