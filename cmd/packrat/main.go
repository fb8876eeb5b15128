// Package main provides the packrat CLI tool for inspecting and
// managing local cache entries.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
