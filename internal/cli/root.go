// Package cli implements the batchctl command line.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"imagebatch/internal/catalog"
	"imagebatch/internal/infra"
)

// state is shared by the subcommands after PersistentPreRunE ran.
type state struct {
	cfg     *infra.Config
	logger  zerolog.Logger
	catalog *catalog.Catalog
}

// NewRootCmd creates the batchctl root command.
func NewRootCmd() *cobra.Command {
	st := &state{}

	cmd := &cobra.Command{
		Use:           "batchctl",
		Short:         "Run image batches from the command line",
		Long:          "batchctl lists the configured batch modes and runs batches locally against the configured image providers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			env := cfg.AppEnv
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				env = "development"
			}
			// stdout carries command output; logs go to stderr
			st.cfg = cfg
			st.logger = infra.NewLoggerTo(cmd.ErrOrStderr(), env).With().Str("component", "cli").Logger()

			modesPath, _ := cmd.Flags().GetString("modes")
			if modesPath == "" {
				modesPath = cfg.ModesPath
			}
			st.catalog, err = catalog.Load(modesPath)
			return err
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("modes", "", "path to a batch modes YAML file (defaults to BATCH_MODES_PATH or the built-in catalog)")
	cmd.AddCommand(newModesCmd(st), newRunCmd(st), newHistoryCmd(st))

	return cmd
}
