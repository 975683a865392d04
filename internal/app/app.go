package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JoshRudy-fn6/S3Swarm/internal/config"
	"github.com/JoshRudy-fn6/S3Swarm/internal/credential"
	"github.com/JoshRudy-fn6/S3Swarm/internal/journal"
	"github.com/JoshRudy-fn6/S3Swarm/internal/lease"
	"github.com/JoshRudy-fn6/S3Swarm/internal/manifest"
	"github.com/JoshRudy-fn6/S3Swarm/internal/metrics"
	"github.com/JoshRudy-fn6/S3Swarm/internal/progress"
	"github.com/JoshRudy-fn6/S3Swarm/internal/storage"
	"github.com/JoshRudy-fn6/S3Swarm/internal/worker"
)

// Swarm orchestrates one run: manifest generation, scheduling, and the
// bounded worker pool.
type Swarm struct {
	cfg     *config.Config
	logger  *zap.Logger
	client  storage.Client
	creds   *credential.Coordinator
	store   *manifest.Store
	leases  *lease.Manager
	journal journal.Writer
	metrics *metrics.Collector
}

// New wires a swarm against the real object-storage service.
func New(cfg *config.Config, logger *zap.Logger) (*Swarm, error) {
	provider := credential.NewStaticProvider(
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		cfg.Storage.SessionToken,
		0,
	)
	coord := credential.NewCoordinator(provider, logger)

	client, err := storage.NewMinIOClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Secure:   cfg.Storage.Secure,
	}, storage.CoordinatorCredentials(coord))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return newSwarm(cfg, logger, client, coord)
}

// newSwarm finishes wiring with an arbitrary client and coordinator.
func newSwarm(cfg *config.Config, logger *zap.Logger, client storage.Client, coord *credential.Coordinator) (*Swarm, error) {
	store, err := manifest.Open(cfg.Transfer.Manifest, logger)
	if err != nil {
		return nil, err
	}

	leaseDir := filepath.Join(cfg.Transfer.Destination, ".leases")
	leases, err := lease.NewManager(leaseDir, logger)
	if err != nil {
		return nil, err
	}

	var jw journal.Writer = journal.Discard{}
	if cfg.Transfer.Journal != "" && !cfg.Transfer.DryRun {
		jw, err = journal.Open(cfg.Transfer.Journal)
		if err != nil {
			return nil, fmt.Errorf("failed to open transfer journal: %w", err)
		}
	}

	return &Swarm{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		creds:   coord,
		store:   store,
		leases:  leases,
		journal: jw,
		metrics: metrics.New(),
	}, nil
}

// Run executes one orchestration pass. The returned error is non-nil only
// for run-fatal conditions; individual task failures leave it nil.
func (s *Swarm) Run(ctx context.Context) error {
	t := s.cfg.Transfer

	if t.ClearLeases {
		removed, err := s.leases.ClearAll()
		if err != nil {
			return fmt.Errorf("clear leases: %w", err)
		}
		requeued, err := s.store.RequeueInProgress()
		if err != nil {
			return fmt.Errorf("requeue in-progress tasks: %w", err)
		}
		s.logger.Info("Cleared stale leases",
			zap.Int("markers_removed", removed),
			zap.Int("tasks_requeued", requeued),
		)
	}

	// Pre-flight: fail before any worker starts if authentication is
	// already broken.
	if _, err := s.creds.Acquire(ctx); err != nil {
		return fmt.Errorf("credential pre-flight failed: %w", err)
	}

	if t.GenerateManifest || s.store.Len() == 0 {
		if err := s.generateManifest(ctx); err != nil {
			return err
		}
		if t.GenerateManifest {
			s.logger.Info("Manifest generation complete", zap.String("manifest", t.Manifest))
			return nil
		}
	}

	if t.RetryFailed {
		n, err := s.store.RequeueFailed(t.RetryResetAttempts)
		if err != nil {
			return fmt.Errorf("requeue failed tasks: %w", err)
		}
		s.logger.Info("Requeued failed tasks for retry",
			zap.Int("count", n),
			zap.Bool("reset_attempts", t.RetryResetAttempts),
		)
	}

	eligible := s.store.Query(manifest.StatusPending)
	stats := s.store.Stats()
	s.logger.Info("Manifest status",
		zap.Int("pending", stats.Pending),
		zap.Int("in_progress", stats.InProgress),
		zap.Int("completed", stats.Completed),
		zap.Int("failed", stats.Failed),
		zap.String("total_size", progress.FormatBytes(stats.TotalBytes)),
		zap.String("completed_size", progress.FormatBytes(stats.CompletedBytes)),
	)

	if len(eligible) == 0 {
		s.logger.Info("No eligible tasks; nothing to transfer")
		return nil
	}

	var eligibleBytes int64
	for _, task := range eligible {
		eligibleBytes += task.Size
	}

	if t.DryRun {
		s.logger.Info("Dry run, no transfers performed",
			zap.Int("would_transfer", len(eligible)),
			zap.String("total_size", progress.FormatBytes(eligibleBytes)),
			zap.Int("max_workers", t.MaxWorkers),
		)
		return nil
	}

	if s.cfg.MetricsAddr != "" {
		go func() {
			if err := s.metrics.StartServer(s.cfg.MetricsAddr); err != nil {
				s.logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	s.metrics.SetTotalCounts(int64(len(eligible)), eligibleBytes)

	var display *progress.Display
	if t.ShowProgress && progress.IsTerminalSupported() {
		display = progress.NewDisplay(s.metrics.GetProgressTracker(), 2*time.Second)
		display.Start()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := worker.NewPool(
		t.MaxWorkers,
		worker.Config{
			MaxRetries: t.MaxRetries,
			BaseDelay:  t.BaseDelay(),
			MaxDelay:   t.MaxDelay(),
		},
		s.client, s.creds, s.store, s.leases, s.journal, s.metrics, s.logger, cancel,
	)

	tasks := make(chan worker.Task, t.MaxWorkers*2)
	var wg sync.WaitGroup
	pool.Start(runCtx, tasks, &wg)

	s.logger.Info("Dispatching tasks",
		zap.Int("eligible", len(eligible)),
		zap.Int("max_workers", t.MaxWorkers),
	)

dispatch:
	for _, task := range eligible {
		select {
		case tasks <- worker.Task{
			Bucket:      task.Bucket,
			Object:      task.Object,
			Size:        task.Size,
			Destination: task.Destination,
			Attempts:    task.Attempts,
		}:
		case <-runCtx.Done():
			break dispatch
		}
	}
	close(tasks)
	wg.Wait()

	if display != nil {
		display.Stop()
	}

	if err := s.store.Persist(); err != nil {
		s.logger.Error("Failed to persist manifest after run", zap.Error(err))
	}

	summary := pool.Summary()
	s.logger.Info("Run finished",
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("aborted", summary.Aborted),
	)

	if err := pool.FatalErr(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		s.logger.Warn("Run interrupted; in-progress tasks need lease cleanup before retry")
	}
	return nil
}

// Summary exposes the manifest stats for callers after a run.
func (s *Swarm) Summary() manifest.Stats {
	return s.store.Stats()
}

func (s *Swarm) generateManifest(ctx context.Context) error {
	buckets, err := LoadBuckets(s.cfg.Transfer.BucketsFile)
	if err != nil {
		return err
	}
	if len(buckets) == 0 {
		return fmt.Errorf("buckets file %s lists no buckets", s.cfg.Transfer.BucketsFile)
	}

	s.logger.Info("Generating manifest", zap.Int("buckets", len(buckets)))

	builder := &ManifestBuilder{
		client:   s.client,
		store:    s.store,
		destRoot: s.cfg.Transfer.Destination,
		logger:   s.logger,
	}
	added, bytes, err := builder.Build(ctx, buckets)
	if err != nil {
		return fmt.Errorf("manifest generation failed: %w", err)
	}

	s.logger.Info("Manifest generated",
		zap.Int64("tasks_added", added),
		zap.String("total_size", progress.FormatBytes(bytes)),
	)
	return nil
}

// Close cleans up resources
func (s *Swarm) Close() error {
	return s.journal.Close()
}
