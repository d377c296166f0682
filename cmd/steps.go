package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/polysquare/ci-scripts/pkg"
	"github.com/polysquare/ci-scripts/pkg/container"
	"github.com/polysquare/ci-scripts/pkg/output"
	"github.com/polysquare/ci-scripts/pkg/steps"
)

var stepsCmd = &cobra.Command{
	Use:   "steps [file]",
	Short: "Runs the steps from a YAML step file",
	Long: `Parses the given step file and runs every step in order. Without an
argument, the first ` + steps.DefaultFileName + ` found in the working directory or any
of its parents is used. The exit status is the number of failed steps.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) > 0 {
			path = args[0]
		} else {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}

			path, err = steps.FindFile(wd, steps.DefaultFileName)
			if err != nil {
				return err
			}
		}

		file, err := steps.Load(path)
		if err != nil {
			return err
		}

		pkg.PrintTask("Running " + path)

		cont, err := container.New(cfg.ContainerDir)
		if err != nil {
			return err
		}

		runner := steps.Runner{
			Logger:            output.Stderr(),
			Sink:              cont,
			DefaultDotTimeout: time.Duration(cfg.DotTimeout) * time.Second,
			ForceStream:       cfg.AlwaysPrintProcessOutput,
		}

		ctx := output.WithDebugLogger(cmd.Context(), &logger)
		if err := runner.Run(ctx, file); err != nil {
			return err
		}

		if code := cont.ReturnCode(); code != 0 {
			pkg.PrintError(fmt.Sprintf("%d of %d steps failed", code, len(file.Steps)))
			os.Exit(code)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stepsCmd)
}
