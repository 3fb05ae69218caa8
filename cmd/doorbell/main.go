// Command doorbell is the smart-doorbell pipeline orchestrator's single
// binary entrypoint, split into operational subcommands (spec §6/§9).
// Grounded on vanducng-goclaw's cmd/ tree for the cobra-based CLI shape,
// replacing the teacher's single-purpose cmd/tarsy/main.go with a
// root command plus `serve` and `ring` subcommands, since this module
// exposes more than one operational entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "doorbell",
		Short: "Smart-doorbell pipeline orchestrator",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./configs/doorbell.yaml", "path to the YAML config file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newRingCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
