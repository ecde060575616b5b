// Package cli implements the contactgraph command tree.
package cli

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/contactgraph/internal/config"
	"github.com/roach88/contactgraph/internal/logging"
)

// RootOptions holds global flags for all commands, plus the configuration
// and logger resolved from them before any command runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	Config config.Config
	Logger zerolog.Logger

	closeLog func() error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// persistentKeys maps global flags onto configuration keys.
var persistentKeys = map[string]string{
	"driver":     "store.driver",
	"db":         "store.path",
	"dsn":        "store.dsn",
	"log-level":  "log.level",
	"log-format": "log.format",
	"log-output": "log.output",
}

// NewRootCommand creates the root command for the contactgraph CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:   "contactgraph",
		Short: "contactgraph - identity reconciliation",
		Long: `contactgraph links contact observations (email, phone number) that
refer to the same person into one identity with a single primary contact.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closeLog != nil {
				return opts.closeLog()
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default ./contactgraph.yaml or $HOME/.contactgraph.yaml)")
	flags.String("driver", "", "store driver (sqlite|postgres)")
	flags.String("db", "", "path to SQLite database")
	flags.String("dsn", "", "PostgreSQL connection string")
	flags.String("log-level", "", "log level (trace|debug|info|warn|error)")
	flags.String("log-format", "", "log format (json|console|auto)")
	flags.String("log-output", "", "log output (stderr|stdout|discard|<file>)")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewIdentifyCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup loads configuration with flags taking precedence and builds the
// logger.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	v := viper.New()
	for flag, key := range persistentKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	if f := cmd.Flags().Lookup("addr"); f != nil {
		if err := v.BindPFlag("server.addr", f); err != nil {
			return fmt.Errorf("bind --addr: %w", err)
		}
	}

	cfg, err := config.Load(v, o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.Output = cfg.Log.Output
	if o.Verbose {
		logCfg.Level = "debug"
	}

	logger, closeLog, err := logging.New(logCfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log configuration", err)
	}

	o.Config = cfg
	o.Logger = logger.With().Str("command", cmd.Name()).Logger()
	o.closeLog = closeLog

	if cfg.ConfigFile != "" {
		o.Logger.Debug().Str("file", cfg.ConfigFile).Msg("using config file")
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter returns an OutputFormatter writing to cmd's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
