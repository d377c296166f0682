package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/polysquare/ci-scripts/pkg/config"
)

var (
	cfg    *config.Options
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ci-scripts",
	Short: "CI bootstrap toolkit",
	Long: `This command bundles the steps that make up a CI job: it runs external
commands with captured, streamed or heartbeat output, and keeps count of
failures in a shared container directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}

		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		if dir, _ := cmd.Flags().GetString("container-dir"); dir != "" {
			cfg.ContainerDir = dir
		}

		logger = zerolog.New(NewConsoleWriter()).Level(cfg.LogLevel())
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logger = logger.Level(zerolog.DebugLevel)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug output")
	rootCmd.PersistentFlags().String("config", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().String("container-dir", "", "Override the container directory")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
