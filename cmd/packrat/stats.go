package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/packrat-io/packrat/internal/local"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show totals for a cache directory",
	Long: `Display totals for the local cache tier:
- Number of entries
- Total size on disk`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		return fmt.Errorf("cache directory %q does not exist", cacheDir)
	}

	names, err := local.List(cacheDir)
	if err != nil {
		return err
	}

	var totalSize int64
	for _, name := range names {
		info, err := os.Stat(filepath.Join(cacheDir, name))
		if err != nil {
			continue
		}
		totalSize += info.Size()
	}

	if len(names) == 0 {
		fmt.Println("No cache entries found.")
		return nil
	}

	fmt.Printf("Cache directory: %s\n", cacheDir)
	fmt.Printf("Entries:         %d\n", len(names))
	fmt.Printf("Total size:      %s\n", formatBytes(totalSize))

	if verbose {
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
