// Package cli wires the backstock commands: configuration loading,
// dependency construction, and the serve loop.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for the backstock CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "backstock",
		Short: "Push sold-out products to the bottom of collections",
		Long: "backstock keeps per-collection push-down configuration converged " +
			"against the shop's product catalog: available products stay in their " +
			"primary order, sold-out products sink to the bottom.",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "backstock.yaml", "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}
