package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Flag overrides applied on top of file and environment.
	BaseURL  string
	Database string

	// Config is resolved before any subcommand runs.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cartsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Config: config.Default()}

	cmd := &cobra.Command{
		Use:   "cartsync",
		Short: "cartsync - optimistic cart sync across tabs",
		Long: `Keeps a shopping cart consistent across tabs of one browser profile and
with the remote commerce API. Each tab applies changes optimistically,
confirms them remotely and rolls them back on rejection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolveConfig()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "remote cart API base URL")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the Local Store database")

	cmd.AddCommand(NewTabCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewRemoteCommand(opts))
	cmd.AddCommand(NewFakeGatewayCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// resolveConfig loads defaults, file and environment, then applies flags.
func (o *RootOptions) resolveConfig() error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := cfg.Override(config.Config{BaseURL: o.BaseURL, Database: o.Database}); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	o.Config = cfg
	return nil
}

// Logger returns a text logger on w. --verbose forces debug level.
func (o *RootOptions) Logger(w io.Writer) *slog.Logger {
	level := o.Config.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// formatter builds the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
