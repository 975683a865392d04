package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JoshRudy-fn6/S3Swarm/internal/app"
	"github.com/JoshRudy-fn6/S3Swarm/internal/config"
	"github.com/JoshRudy-fn6/S3Swarm/internal/logger"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "s3swarm",
	Short: "Orchestrated bulk S3 retrieval with a bounded worker swarm",
	Long: `s3swarm downloads large, enumerable object sets from an S3-compatible
service using a bounded pool of concurrent workers, tracking progress in a
durable manifest so an interrupted run resumes exactly where it left off.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML)")

	// Storage flags
	rootCmd.Flags().String("endpoint", "", "object storage endpoint")
	rootCmd.Flags().String("access-key", "", "access key")
	rootCmd.Flags().String("secret-key", "", "secret key")
	rootCmd.Flags().String("session-token", "", "session token for temporary credentials")
	rootCmd.Flags().Bool("secure", true, "use HTTPS")
	rootCmd.Flags().String("profile", "default", "credential profile name")

	// Transfer flags
	rootCmd.Flags().String("destination", "./s3_downloads", "destination directory for downloads")
	rootCmd.Flags().String("buckets-file", "buckets.txt", "text file containing bucket names (one per line)")
	rootCmd.Flags().String("manifest", "download_manifest.json", "manifest file path")
	rootCmd.Flags().String("journal", "transfer_journal.db", "per-attempt journal database (empty to disable)")
	rootCmd.Flags().Int("max-workers", 4, "maximum concurrent downloads")
	rootCmd.Flags().Int("max-retries", 3, "maximum retries per task")
	rootCmd.Flags().Int("base-delay-ms", 5000, "initial retry backoff in milliseconds")
	rootCmd.Flags().Int("max-delay-ms", 30000, "retry backoff ceiling in milliseconds")
	rootCmd.Flags().Bool("generate-manifest", false, "only generate the manifest, do not download")
	rootCmd.Flags().Bool("dry-run", false, "show what would be downloaded")
	rootCmd.Flags().Bool("retry-failed", false, "requeue failed tasks for retry")
	rootCmd.Flags().Bool("retry-reset-attempts", true, "reset attempt counters when requeueing failed tasks")
	rootCmd.Flags().Bool("clear-leases", false, "remove stale lease markers left by a crashed run")
	rootCmd.Flags().Bool("show-progress", true, "show progress display")
	rootCmd.Flags().String("metrics-addr", "", "address for the /metrics endpoint (empty to disable)")
	rootCmd.Flags().String("log-level", "info", "log level (debug/info/warn/error)")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	swarm, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create swarm: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Received shutdown signal, finishing current attempts...")
		cancel()
	}()

	err = swarm.Run(ctx)

	if closeErr := swarm.Close(); closeErr != nil {
		log.Error("Error closing swarm", zap.Error(closeErr))
	}

	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
