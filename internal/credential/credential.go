// Package credential coordinates the process-wide shared credential. Any
// worker may read the current token; exactly one refresh runs at a time,
// and late callers adopt its result instead of issuing duplicates.
package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrAuthRefresh indicates the identity provider rejected renewal. This is
// fatal to the whole run, not to a single task.
var ErrAuthRefresh = errors.New("credential renewal rejected")

// expirySkew treats tokens about to expire as already expired so a
// transfer does not start with seconds of validity left.
const expirySkew = 30 * time.Second

// Credential is the shared, expiring authorization token. Epoch records
// which installation it came from, so a holder can report it expired
// without invalidating a fresher token installed since.
type Credential struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiry          time.Time
	Epoch           uint64
}

// Valid reports whether the credential can still be used at time now.
func (c Credential) Valid(now time.Time) bool {
	return c.AccessKeyID != "" && now.Add(expirySkew).Before(c.Expiry)
}

// Provider performs the actual exchanges with the upstream identity
// provider for one profile.
type Provider interface {
	// Authenticate establishes the initial credential.
	Authenticate(ctx context.Context) (Credential, error)
	// Renew refreshes an expired credential.
	Renew(ctx context.Context) (Credential, error)
}

// Coordinator holds the shared credential and serializes refresh. The
// epoch counter distinguishes a caller's own refresh from someone else's
// newer one, so a stale response never downgrades a fresher token.
type Coordinator struct {
	provider Provider
	logger   *zap.Logger

	mu         sync.Mutex
	current    Credential
	epoch      uint64
	refreshing bool
	done       chan struct{}
	fatal      error
	primed     bool
}

// NewCoordinator wraps provider with single-flight refresh discipline.
func NewCoordinator(provider Provider, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		provider: provider,
		logger:   logger,
	}
}

// Acquire returns the current shared credential, blocking while a refresh
// is in flight. It never returns a token it considers expired. Once a
// renewal has been rejected, every call fails with ErrAuthRefresh.
func (c *Coordinator) Acquire(ctx context.Context) (Credential, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Credential{}, err
		}

		c.mu.Lock()
		if c.fatal != nil {
			err := c.fatal
			c.mu.Unlock()
			return Credential{}, err
		}
		if c.current.Valid(time.Now()) {
			cred := c.current
			c.mu.Unlock()
			return cred, nil
		}

		if !c.refreshing {
			c.refreshing = true
			c.done = make(chan struct{})
			myEpoch := c.epoch
			first := !c.primed
			c.mu.Unlock()

			cred, err := c.refresh(ctx, myEpoch, first)
			if err != nil {
				return Credential{}, err
			}
			if cred.AccessKeyID != "" {
				return cred, nil
			}
			continue
		}

		// Someone else's refresh is underway; wait for its result and
		// re-check rather than issuing a duplicate renewal.
		done := c.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return Credential{}, ctx.Err()
		}
	}
}

// Expired reports whether the current credential needs a refresh. Used by
// transport adapters that poll before signing requests.
func (c *Coordinator) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.current.Valid(time.Now())
}

// Epoch returns the number of credential installations so far.
func (c *Coordinator) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Invalidate marks the credential from installation epoch as expired, so
// the next Acquire refreshes it. A stale epoch is a no-op: someone else's
// newer token never gets torn down by a holder of an old one.
func (c *Coordinator) Invalidate(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return
	}
	c.current.Expiry = time.Time{}
}

// refresh performs one renewal and publishes the result. It returns the
// token now current, or the zero Credential when the refresh was
// abandoned or superseded and the caller should re-check.
func (c *Coordinator) refresh(ctx context.Context, myEpoch uint64, first bool) (Credential, error) {
	var cred Credential
	var err error
	if first {
		cred, err = c.provider.Authenticate(ctx)
	} else {
		c.logger.Info("Refreshing expired credential")
		cred, err = c.provider.Renew(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshing = false
	close(c.done)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Shutdown raced the refresh; leave the coordinator usable
			// for any caller with a live context.
			c.logger.Warn("Credential refresh abandoned", zap.Error(err))
			return Credential{}, err
		}
		c.fatal = fmt.Errorf("%w: %v", ErrAuthRefresh, err)
		c.logger.Error("Credential renewal rejected by identity provider", zap.Error(err))
		return Credential{}, c.fatal
	}

	if c.epoch != myEpoch {
		// A newer refresh already landed; keep the fresher token.
		c.logger.Debug("Discarding stale credential refresh",
			zap.Uint64("stale_epoch", myEpoch),
			zap.Uint64("current_epoch", c.epoch),
		)
		return c.current, nil
	}

	c.epoch++
	cred.Epoch = c.epoch
	c.current = cred
	c.primed = true
	c.logger.Info("Credential installed",
		zap.Uint64("epoch", c.epoch),
		zap.Time("expiry", cred.Expiry),
	)
	return cred, nil
}
