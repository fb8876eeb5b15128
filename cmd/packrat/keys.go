package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/packrat-io/packrat/internal/remote/dynamoremote"
)

var (
	keysLimit  int
	keysCursor string
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List cache IDs stored in the remote tier",
	Long: `List the cache IDs present in the remote table, one page at a time.

The remote table name is read from PACKRAT_REMOTE_TABLE. Pass --after
with the last ID of the previous page to continue listing.`,
	RunE: runKeys,
}

func init() {
	keysCmd.Flags().IntVar(&keysLimit, "limit", 100, "maximum IDs per page")
	keysCmd.Flags().StringVar(&keysCursor, "after", "", "resume after this ID")
	rootCmd.AddCommand(keysCmd)
}

func runKeys(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	table := os.Getenv("PACKRAT_REMOTE_TABLE")
	if table == "" {
		return fmt.Errorf("PACKRAT_REMOTE_TABLE must be set")
	}

	store, err := dynamoremote.New(ctx, table)
	if err != nil {
		return fmt.Errorf("connecting to remote store: %w", err)
	}
	defer store.Close()

	if err := store.EnsureReady(ctx); err != nil {
		return fmt.Errorf("checking remote table: %w", err)
	}

	ids, cursor, err := store.Keys(ctx, keysLimit, keysCursor)
	if err != nil {
		return fmt.Errorf("listing keys: %w", err)
	}

	for _, id := range ids {
		fmt.Println(id)
	}
	if cursor != "" {
		fmt.Printf("\nMore results: --after %q\n", cursor)
	}
	return nil
}
