package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/packrat-io/packrat/internal/keys"
	"github.com/packrat-io/packrat/internal/local"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [data-id]",
	Short: "Show a cache entry",
	Long: `Show the stored fields, memoized results and freshness of one cache
entry.

Examples:
  packrat inspect "user:42"
  packrat inspect "user:42" --dir ./cache`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	key := keys.Key{DataID: args[0], Directory: cacheDir}

	store := local.New()
	doc, raw, err := store.Load(key)
	if err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return fmt.Errorf("no cache entry for %q in %s", args[0], cacheDir)
		}
		return fmt.Errorf("loading entry: %w", err)
	}

	fmt.Printf("Entry:      %s\n", key)
	fmt.Printf("File:       %s\n", key.Path())
	fmt.Printf("Size:       %d bytes\n", len(raw))
	fmt.Printf("Created:    %s\n", doc.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:    %s\n", doc.UpdatedAt.Format(time.RFC3339))
	if doc.TTLDays != nil {
		fmt.Printf("TTL:        %g days\n", *doc.TTLDays)
		fmt.Printf("Expired:    %v\n", doc.Expired(time.Now()))
	} else {
		fmt.Printf("TTL:        none\n")
	}

	fmt.Printf("Fields:     %d\n", len(doc.Fields))
	for _, name := range sortedKeys(doc.Fields) {
		fmt.Printf("  %s = %v\n", name, doc.Fields[name])
	}

	if len(doc.Results) > 0 {
		fmt.Printf("Results:    %d\n", len(doc.Results))
		if verbose {
			sigs := make([]string, 0, len(doc.Results))
			for sig := range doc.Results {
				sigs = append(sigs, sig)
			}
			sort.Strings(sigs)
			for _, sig := range sigs {
				fmt.Printf("  %s (%s)\n", sig, doc.Results[sig].Date.Format(time.RFC3339))
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
