package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polysquare/ci-scripts/pkg"
	"github.com/polysquare/ci-scripts/pkg/container"
)

var sysidCmd = &cobra.Command{
	Use:   "system-id",
	Short: "Prints an identifier describing this system's ABI",
	RunE: func(cmd *cobra.Command, args []string) error {
		cont, err := container.New(cfg.ContainerDir)
		if err != nil {
			return err
		}

		id, err := pkg.GetSystemIdentifier(cont)
		if err != nil {
			return err
		}

		fmt.Println(id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sysidCmd)
}
