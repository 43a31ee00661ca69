// Package cli provides the command line interface for tsdb-core, built
// on Cobra.
//
// Command Structure:
//
//	tsdbcore                     # Root command
//	├── ingest                   # WAL replay + write buffer + persist workers
//	│   └── --config, -c         # Specify config file
//	├── compact                  # Compaction driver over the committed catalog
//	│   └── --config, -c         # Specify config file
//	└── status                   # View configured subsystem settings
//
// Configuration Management:
//
//	Uses YAML format config file (default: configs/default.yaml), loaded
//	by internal/config.Load.
//
// ingest Command:
//
//	Starts the write side of the system:
//	1. Load config file
//	2. Build a Controller and run WAL recovery
//	3. Start the persist worker pool
//	4. Listen for SIGINT/SIGTERM and shut down gracefully
//
// compact Command:
//
//	Starts the compaction side of the system against the already
//	committed catalog and object store, without replaying the WAL.
//
// status Command:
//
//	Prints the subsystem settings the config file resolves to.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beaverdb/tsdb-core/internal/config"
	"github.com/beaverdb/tsdb-core/internal/controller"
)

var log = slog.Default()

var configFile string

// BuildCLI assembles the root command and its subcommands.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tsdbcore",
		Short: "tsdbcore: a columnar time-series ingest and compaction engine",
		Long: `tsdbcore buffers incoming writes, persists them as Parquet files,
and compacts them in the background:
- WAL-based durability for buffered writes
- Level-based Parquet compaction
- Prometheus metrics
- Gossip notification of new/changed files`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildIngestCommand())
	rootCmd.AddCommand(buildCompactCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func buildIngestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Replay the WAL and run the persist worker pool",
		Long:  "Recovers buffered writes from the WAL, then buffers and persists new writes until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context())
		},
	}
}

func runIngest(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("cli: load config: %w", err)
	}

	ctrl, err := controller.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cli: build controller: %w", err)
	}

	log.Info("cli: starting ingest", "config", configFile)
	if err := ctrl.StartIngest(ctx); err != nil {
		return fmt.Errorf("cli: start ingest: %w", err)
	}

	waitForShutdown()
	log.Info("cli: stopping ingest")
	ctrl.Stop()
	return nil
}

func buildCompactCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Run the compaction driver against the committed catalog",
		Long:  "Periodically plans and executes compaction rounds for every partition until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompact(cmd.Context())
		},
	}
}

func runCompact(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("cli: load config: %w", err)
	}

	ctrl, err := controller.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cli: build controller: %w", err)
	}

	log.Info("cli: starting compaction", "config", configFile)
	if err := ctrl.StartCompaction(ctx); err != nil {
		return fmt.Errorf("cli: start compaction: %w", err)
	}

	waitForShutdown()
	log.Info("cli: stopping compaction")
	ctrl.Stop()
	return nil
}

func buildStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show resolved configuration",
		Long:  "Load the config file and print the subsystem settings it resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
}

func showStatus() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("cli: load config: %w", err)
	}

	fmt.Println("tsdbcore status")
	fmt.Printf("  config file:        %s\n", configFile)
	fmt.Println()
	fmt.Println("buffer:")
	fmt.Printf("  max open partitions per namespace: %d\n", cfg.Buffer.MaxOpenPartitionsPerNamespace)
	fmt.Println()
	fmt.Println("wal:")
	fmt.Printf("  dir:                %s\n", cfg.WAL.Dir)
	fmt.Printf("  segment glob:       %s\n", cfg.WAL.SegmentGlob)
	fmt.Println()
	fmt.Println("persist:")
	fmt.Printf("  queue buffer size:  %d\n", cfg.Persist.QueueBufferSize)
	fmt.Printf("  worker count:       %d\n", cfg.Persist.WorkerCount)
	fmt.Printf("  sort key cache:     %d\n", cfg.Persist.SortKeyCacheSize)
	fmt.Println()
	fmt.Println("compactor:")
	fmt.Printf("  branch file cap:    %d\n", cfg.Compactor.BranchFileCap)
	fmt.Printf("  max parquet bytes:  %d\n", cfg.Compactor.MaxParquetBytes)
	fmt.Printf("  permits:            %d\n", cfg.Compactor.Permits)
	fmt.Printf("  bytes per permit:   %d\n", cfg.Compactor.BytesPerPermit)
	fmt.Printf("  round timeout:      %s\n", cfg.Compactor.RoundTimeout)
	fmt.Printf("  partition workers:  %d\n", cfg.Compactor.PartitionWorkers)
	fmt.Println()
	fmt.Println("catalog:")
	if cfg.Catalog.DSN == "" {
		fmt.Println("  backend:            in-memory")
	} else {
		fmt.Println("  backend:            postgres")
	}
	fmt.Println()
	fmt.Println("object store:")
	fmt.Printf("  backend:            %s\n", cfg.ObjectStore.Backend)
	fmt.Println()
	fmt.Println("gossip:")
	fmt.Printf("  enabled:            %t\n", cfg.Gossip.Enabled)
	if cfg.Gossip.Enabled {
		fmt.Printf("  addr:               %s\n", cfg.Gossip.Addr)
	}
	fmt.Println()
	fmt.Println("metrics:")
	fmt.Printf("  enabled:            %t\n", cfg.Metrics.Enabled)
	if cfg.Metrics.Enabled {
		fmt.Printf("  port:               %d\n", cfg.Metrics.Port)
	}

	return nil
}

// waitForShutdown blocks until SIGINT or SIGTERM is received.
func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
