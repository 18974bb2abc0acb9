package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/proxlab/pvebridge/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), build.String())
	},
}
