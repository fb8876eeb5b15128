package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/packrat-io/packrat"
	"github.com/packrat-io/packrat/internal/remote/dynamoremote"
)

var clearRemote bool

var clearCmd = &cobra.Command{
	Use:   "clear [data-id]",
	Short: "Remove a cache entry",
	Long: `Remove a cache entry from the local tier, and from the remote tier
when --remote is set.

The remote table name is read from PACKRAT_REMOTE_TABLE.

Examples:
  packrat clear "user:42"
  packrat clear "user:42" --remote`,
	Args: cobra.ExactArgs(1),
	RunE: runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearRemote, "remote", false, "also delete the remote record")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	opts := []packrat.Option{
		packrat.WithDataID(args[0]),
		packrat.WithDirectory(cacheDir),
	}

	if clearRemote {
		table := os.Getenv("PACKRAT_REMOTE_TABLE")
		if table == "" {
			return fmt.Errorf("--remote requires PACKRAT_REMOTE_TABLE to be set")
		}
		store, err := dynamoremote.New(ctx, table)
		if err != nil {
			return fmt.Errorf("connecting to remote store: %w", err)
		}
		defer store.Close()
		opts = append(opts, packrat.WithRemote(store))
	}

	entry, err := packrat.New(opts...)
	if err != nil {
		return err
	}
	defer entry.Close(ctx)

	if err := entry.Clear(ctx); err != nil {
		return fmt.Errorf("clearing entry: %w", err)
	}

	fmt.Printf("Cleared %q from %s\n", args[0], cacheDir)
	if clearRemote {
		fmt.Println("Remote record deleted.")
	}
	return nil
}
