package main

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags.
	cacheDir string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "packrat",
	Short: "Inspect and manage packrat cache entries",
	Long: `Packrat is a CLI tool for inspecting and managing the local tier of a
two-tier persistence cache.

Cache entries are stored as one JSON file per data ID and optionally
mirrored to a shared remote key-value store.

Examples:
  # Show a cache entry
  packrat inspect "user:42"

  # Show totals for a cache directory
  packrat stats

  # Remove an entry
  packrat clear "user:42"`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cacheDir, "dir", "d", "data/cache", "cache directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}
