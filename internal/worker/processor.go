package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JoshRudy-fn6/S3Swarm/internal/credential"
	"github.com/JoshRudy-fn6/S3Swarm/internal/journal"
	"github.com/JoshRudy-fn6/S3Swarm/internal/lease"
	"github.com/JoshRudy-fn6/S3Swarm/internal/manifest"
	"github.com/JoshRudy-fn6/S3Swarm/internal/metrics"
	"github.com/JoshRudy-fn6/S3Swarm/internal/storage"
)

// state enumerates the per-task machine. The lease is held continuously
// from leaseAcquired until a terminal state.
type state int

const (
	stateTransferring state = iota
	stateRetryPending
	stateSucceeded
	stateFailed
)

// TaskProcessor runs the per-task state machine for one worker.
type TaskProcessor struct {
	config  Config
	client  storage.Client
	creds   *credential.Coordinator
	store   *manifest.Store
	leases  *lease.Manager
	journal journal.Writer
	metrics *metrics.Collector
	logger  *zap.Logger
}

// Process drives one task to a terminal outcome. The returned error is
// non-nil only for run-fatal conditions (credential renewal rejected);
// per-task failures are recorded in the manifest and return nil.
func (p *TaskProcessor) Process(ctx context.Context, task Task) (Outcome, error) {
	key := task.Key()
	log := p.logger.With(zap.String("key", key.String()))

	ls, err := p.leases.Acquire(key)
	if err != nil {
		if errors.Is(err, lease.ErrLeaseConflict) {
			log.Info("Skipping task, lease held by another owner")
			p.metrics.IncSkipped()
			return OutcomeSkipped, nil
		}
		log.Error("Cannot create lease marker", zap.Error(err))
		p.updateManifest(key, manifest.StatusFailed, task.Attempts,
			storage.ClassPermanent.String(), err.Error(), log)
		p.metrics.IncFailed()
		return OutcomeFailed, nil
	}

	// On shutdown the marker is intentionally left on disk: the task
	// stays in_progress and needs explicit lease cleanup before another
	// run may retry it.
	releaseLease := true
	defer func() {
		if releaseLease {
			p.leases.Release(ls)
		}
	}()

	attempts := task.Attempts
	attemptsThisRun := 0
	p.updateManifest(key, manifest.StatusInProgress, attempts, "", "", log)

	var lastErr error
	var lastClass storage.ErrorClass

	st := stateTransferring

	// Confirm the object still exists before spending transfer attempts.
	// An object that vanished since enumeration is a permanent failure;
	// any other head error is left for the download to surface.
	if _, err := p.client.HeadObject(ctx, task.Bucket, task.Object); errors.Is(err, storage.ErrNotFound) {
		attempts++
		attemptsThisRun++
		lastErr = err
		lastClass = storage.ClassPermanent
		p.record(task, attempts, journal.OutcomeFailed, lastClass.String(), err.Error(), 0, log)
		st = stateFailed
	}
	for {
		switch st {
		case stateTransferring:
			if ctx.Err() != nil {
				releaseLease = false
				return OutcomeAborted, nil
			}

			cred, err := p.creds.Acquire(ctx)
			if err != nil {
				if errors.Is(err, credential.ErrAuthRefresh) {
					releaseLease = false
					return OutcomeAborted, err
				}
				releaseLease = false
				return OutcomeAborted, nil
			}

			attempts++
			attemptsThisRun++
			start := time.Now()
			n, err := p.client.DownloadObject(ctx, task.Bucket, task.Object, task.Destination)
			elapsed := time.Since(start)
			p.metrics.ObserveDuration(elapsed)

			if err == nil && task.Size > 0 && n != task.Size {
				err = fmt.Errorf("truncated transfer: wrote %d of %d bytes", n, task.Size)
			}

			if err == nil {
				p.record(task, attempts, journal.OutcomeSucceeded, "", "", elapsed, log)
				st = stateSucceeded
				continue
			}

			if ctx.Err() != nil {
				releaseLease = false
				return OutcomeAborted, nil
			}

			if storage.IsCredentialExpired(err) {
				// Token lapsed mid-transfer; route the next attempt
				// through the coordinator's refresh.
				p.creds.Invalidate(cred.Epoch)
			}

			lastErr = err
			lastClass = storage.Classify(err)
			log.Warn("Transfer attempt failed",
				zap.Int("attempt", attempts),
				zap.String("class", lastClass.String()),
				zap.Error(err),
			)

			if lastClass == storage.ClassTransient && attemptsThisRun <= p.config.MaxRetries {
				p.record(task, attempts, journal.OutcomeRetried, lastClass.String(), err.Error(), elapsed, log)
				st = stateRetryPending
			} else {
				p.record(task, attempts, journal.OutcomeFailed, lastClass.String(), err.Error(), elapsed, log)
				st = stateFailed
			}

		case stateRetryPending:
			delay := Backoff(attemptsThisRun, p.config.BaseDelay, p.config.MaxDelay)
			log.Info("Backing off before retry",
				zap.Int("attempt", attempts),
				zap.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
				st = stateTransferring
			case <-ctx.Done():
				releaseLease = false
				return OutcomeAborted, nil
			}

		case stateSucceeded:
			p.updateManifest(key, manifest.StatusCompleted, attempts, "", "", log)
			p.metrics.IncCompleted(task.Size)
			log.Info("Task completed",
				zap.Int64("size", task.Size),
				zap.Int("attempts", attempts),
			)
			return OutcomeCompleted, nil

		case stateFailed:
			p.updateManifest(key, manifest.StatusFailed, attempts,
				lastClass.String(), lastErr.Error(), log)
			p.metrics.IncFailed()
			log.Error("Task failed",
				zap.Int("attempts", attempts),
				zap.String("class", lastClass.String()),
				zap.Error(lastErr),
			)
			return OutcomeFailed, nil
		}
	}
}

func (p *TaskProcessor) updateManifest(key manifest.Key, status manifest.Status, attempts int, class, msg string, log *zap.Logger) {
	if err := p.store.Update(key, status, attempts, class, msg); err != nil {
		log.Error("Failed to update manifest", zap.Error(err))
	}
}

func (p *TaskProcessor) record(task Task, attempt int, outcome journal.Outcome, class, msg string, d time.Duration, log *zap.Logger) {
	err := p.journal.Record(journal.Entry{
		Bucket:     task.Bucket,
		Object:     task.Object,
		Attempt:    attempt,
		Outcome:    outcome,
		ErrorClass: class,
		Message:    msg,
		Duration:   d,
	})
	if err != nil {
		log.Warn("Failed to record attempt in journal", zap.Error(err))
	}
}
