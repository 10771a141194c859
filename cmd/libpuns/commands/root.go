// Package commands implements the libpuns CLI command tree.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "libpuns",
	Short: "libpuns - distributed-object networking server and client",
	Long: `libpuns runs a zone-based distributed-object networking server:
clients authenticate, join a zone, and exchange permissioned field
updates on shared network nodes.

Use "libpuns [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/libpuns/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(schemaCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func exitf(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
	os.Exit(1)
}
