package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/lanatus/internal/config"
	"github.com/roach88/lanatus/internal/ledger"
	"github.com/roach88/lanatus/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is resolved from flags, environment and .env files before
	// any subcommand runs.
	Config config.Config

	Logger *slog.Logger
	Level  *slog.LevelVar
}

// NewRootCommand creates the root command for the lanatus CLI. The level
// is adjusted to the configured log level; both may be nil.
func NewRootCommand(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if level == nil {
		level = &slog.LevelVar{}
	}
	opts := &RootOptions{Logger: logger, Level: level}

	cmd := &cobra.Command{
		Use:   "lanatus",
		Short: "lanatus - melons ledger",
		Long:  "Inspect and change melons accounts, products and purchases stored in the lanatus database.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, config.KeyFormat, config.FormatText, "output format (json|text)")
	cmd.PersistentFlags().String(config.KeyDB, "", "database path or DSN (env LANATUS_DB)")
	cmd.PersistentFlags().String(config.KeyDriver, "", "database driver: sqlite3 or pgx (env LANATUS_DRIVER)")
	cmd.PersistentFlags().String(config.KeyLogLevel, "", "log level: debug, info, warn or error (env LANATUS_LOG_LEVEL)")

	// Add subcommands
	cmd.AddCommand(NewAccountCommand(opts))
	cmd.AddCommand(NewProductCommand(opts))
	cmd.AddCommand(NewPurchaseCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd
}

func (o *RootOptions) resolve(cmd *cobra.Command) error {
	config.LoadEnvFiles(".")
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	o.Config = cfg
	o.Format = cfg.Format
	if o.Verbose {
		o.Level.Set(slog.LevelDebug)
	} else {
		o.Level.Set(cfg.LogLevel)
	}
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// openClient opens the configured store. The returned close function must
// be called once the command is done.
func (o *RootOptions) openClient() (*ledger.Client, func(), error) {
	s, err := store.OpenDSN(o.Config.Driver, o.Config.DB)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	o.Logger.Debug("store opened", "driver", o.Config.Driver, "db", o.Config.DB)
	return ledger.NewClient(s, ledger.WithLogger(o.Logger)), func() { s.Close() }, nil
}
