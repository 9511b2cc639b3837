package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/sqlcoll/internal/config"
	"github.com/roach88/sqlcoll/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"

	// Config is resolved from flags and environment before a subcommand runs.
	Config config.Config
	viper  *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command of the sqlcoll CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: config.New()}

	cmd := &cobra.Command{
		Use:   "sqlcoll",
		Short: "sqlcoll - SQL-backed maps and queues",
		Long: `Inspect and edit persistent maps and FIFO queues stored in SQL tables.

Each collection lives in its own table, named after the collection id.
Connection settings come from flags or SQLCOLL_* environment variables,
which may be set in .env or .env.local.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	config.SetupFlags(cmd)

	cmd.AddCommand(NewMapCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))

	return cmd
}

// load resolves the configuration and configures logging. Invalid settings
// are reported with CodeConfig.
func (o *RootOptions) load(cmd *cobra.Command) error {
	if err := config.BindFlags(o.viper, cmd.Root()); err != nil {
		return WrapExitError(ExitCommandError, "bind flags", err)
	}
	cfg, err := config.Load(o.viper)
	if err == nil {
		err = logging.Init(cfg.Log)
	}
	if err != nil {
		_ = o.formatter(cmd).Error(CodeConfig, "invalid configuration", err.Error())
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg
	return nil
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
