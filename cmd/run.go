package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/polysquare/ci-scripts/pkg/container"
	"github.com/polysquare/ci-scripts/pkg/executil"
	"github.com/polysquare/ci-scripts/pkg/output"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- command [args...]",
	Short: "Runs a single command through the execution core",
	Long: `Runs the given command, handling its output according to --output and
noting a failure in the container if it exits nonzero. The command's exit
status becomes this command's exit status.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}

		dotTimeout, err := cmd.Flags().GetInt("dot-timeout")
		if err != nil {
			return err
		}
		if dotTimeout == 0 {
			dotTimeout = cfg.DotTimeout
		}

		strategy, err := executil.StrategyFor(mode, time.Duration(dotTimeout)*time.Second)
		if err != nil {
			return err
		}

		instantFail, err := cmd.Flags().GetBool("instant-fail")
		if err != nil {
			return err
		}

		allowFailure, err := cmd.Flags().GetBool("allow-failure")
		if err != nil {
			return err
		}

		cont, err := container.New(cfg.ContainerDir)
		if err != nil {
			return err
		}

		ctx := output.WithDebugLogger(cmd.Context(), &logger)
		status, err := executil.Execute(ctx, output.Stderr(), cont, strategy, args, &executil.Options{
			InstantFail:  instantFail,
			AllowFailure: allowFailure,
			ForceStream:  cfg.AlwaysPrintProcessOutput,
		})
		if err != nil {
			return err
		}

		if status != 0 {
			os.Exit(status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("output", "o", "suppressed", "Output mode (suppressed, stream or heartbeat)")
	runCmd.Flags().Int("dot-timeout", 0, "Seconds between heartbeat dots (defaults to the configured value)")
	runCmd.Flags().Bool("instant-fail", false, "Abort the whole run on failure instead of recording it")
	runCmd.Flags().Bool("allow-failure", false, "Don't note a failure if the command exits nonzero")
}
