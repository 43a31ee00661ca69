// Command tsdbcore is the entry point for the ingest/compaction engine.
//
// Usage:
//
//	tsdbcore ingest -c configs/default.yaml
//	tsdbcore compact -c configs/default.yaml
//	tsdbcore status -c configs/default.yaml
package main

import (
	"fmt"
	"os"

	"github.com/beaverdb/tsdb-core/internal/cli"
)

// Build-time version injection via ldflags, e.g.:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
