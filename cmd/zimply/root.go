package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "zimply",
	Short: "zimply - read, index, and serve ZIM archives",
	Long: `zimply opens a ZIM archive and exposes its articles over a small
JSON HTTP API, backed by a BM25-ranked title search index.`,
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
