// Package cmd implements the pvebridge command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pvebridge",
	Short: "Proxmox event relay and MCP notification bridge",
	Long: "pvebridge ingests events from Proxmox VE/PBS nodes (syslog, task stream, " +
		"Gotify, mail) and relays them to the configured notification channels. It also " +
		"exposes an MCP tool catalogue for agent workflows.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(notifyCmd)
	rootCmd.AddCommand(versionCmd)
}
