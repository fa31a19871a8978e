// ====================================
// File: cmd/launchpad/main.go
// ====================================
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "launchpad",
		Short:         "Bonding curve token launchpad",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the config file")

	root.AddCommand(
		newRunCmd(&configPath),
		newDeployCmd(&configPath),
		newQuoteCmd(&configPath),
		newWalletsCmd(),
	)
	return root
}
