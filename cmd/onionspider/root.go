package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for onionspider.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onionspider",
		Short: "Crawler for Tor hidden services",
		Long: `onionspider crawls Tor hidden services (.onion addresses) found in seed files.

Seed files are CSV or XLSX; every cell is scanned for onion URLs. Each
distinct URL becomes a Location in the Work Queue and is fetched once
through Tor. Results are kept in a local SQLite database or in PostgreSQL.

By default, onionspider starts an embedded Tor daemon automatically.
Use --external-tor to use an existing Tor proxy instead.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
