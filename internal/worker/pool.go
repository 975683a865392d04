package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JoshRudy-fn6/S3Swarm/internal/credential"
	"github.com/JoshRudy-fn6/S3Swarm/internal/journal"
	"github.com/JoshRudy-fn6/S3Swarm/internal/lease"
	"github.com/JoshRudy-fn6/S3Swarm/internal/manifest"
	"github.com/JoshRudy-fn6/S3Swarm/internal/metrics"
	"github.com/JoshRudy-fn6/S3Swarm/internal/storage"
)

// Summary tallies the terminal outcomes of one run.
type Summary struct {
	Completed int
	Failed    int
	Skipped   int
	Aborted   int
}

// Pool manages a bounded set of workers pulling tasks from a channel.
type Pool struct {
	size    int
	config  Config
	client  storage.Client
	creds   *credential.Coordinator
	store   *manifest.Store
	leases  *lease.Manager
	journal journal.Writer
	metrics *metrics.Collector
	logger  *zap.Logger
	abort   context.CancelFunc

	mu       sync.Mutex
	summary  Summary
	fatalErr error
}

// NewPool creates a new worker pool. abort cancels the run context when a
// worker hits a run-fatal error, so every other worker ceases new attempts.
func NewPool(
	size int,
	config Config,
	client storage.Client,
	creds *credential.Coordinator,
	store *manifest.Store,
	leases *lease.Manager,
	journalWriter journal.Writer,
	metricsCollector *metrics.Collector,
	logger *zap.Logger,
	abort context.CancelFunc,
) *Pool {
	return &Pool{
		size:    size,
		config:  config,
		client:  client,
		creds:   creds,
		store:   store,
		leases:  leases,
		journal: journalWriter,
		metrics: metricsCollector,
		logger:  logger,
		abort:   abort,
	}
}

// Start starts the worker pool
func (p *Pool) Start(ctx context.Context, tasks <-chan Task, wg *sync.WaitGroup) {
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go p.worker(ctx, i, tasks, wg)
	}
}

// Summary returns the outcome tallies so far.
func (p *Pool) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

// FatalErr returns the first run-fatal error reported by any worker.
func (p *Pool) FatalErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fatalErr
}

func (p *Pool) worker(ctx context.Context, id int, tasks <-chan Task, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Debug("Worker started")

	processor := &TaskProcessor{
		config:  p.config,
		client:  p.client,
		creds:   p.creds,
		store:   p.store,
		leases:  p.leases,
		journal: p.journal,
		metrics: p.metrics,
		logger:  logger,
	}

	for {
		select {
		case task, ok := <-tasks:
			if !ok {
				logger.Debug("Worker finished, no more tasks")
				return
			}

			p.metrics.WorkerStarted()
			outcome, err := processor.Process(ctx, task)
			p.metrics.WorkerStopped()

			p.tally(outcome)
			if err != nil {
				logger.Error("Run-fatal error, stopping all workers", zap.Error(err))
				p.recordFatal(err)
				p.abort()
				return
			}

		case <-ctx.Done():
			logger.Debug("Worker stopped, run cancelled")
			return
		}
	}
}

func (p *Pool) tally(outcome Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch outcome {
	case OutcomeCompleted:
		p.summary.Completed++
	case OutcomeFailed:
		p.summary.Failed++
	case OutcomeSkipped:
		p.summary.Skipped++
	case OutcomeAborted:
		p.summary.Aborted++
	}
}

func (p *Pool) recordFatal(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fatalErr == nil {
		p.fatalErr = err
	}
}
