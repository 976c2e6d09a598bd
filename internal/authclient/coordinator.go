package authclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/metrics"
	"github.com/rryowa/gymsession/internal/models"
)

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenRefreshResponse, error)
}

type State int

const (
	StateIdle State = iota
	StateInFlight
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in-flight"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Coordinator runs at most one refresh call at a time. Callers arriving while
// a call is outstanding wait for its result and are resolved in arrival order.
type Coordinator struct {
	store     SessionStore
	refresher Refresher
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics
	onExpired func(error)

	mu      sync.Mutex
	state   State
	waiters []chan error
	// epoch changes on every Reset; a call started under an older epoch is stale.
	epoch   uint64
	started time.Time
}

func NewCoordinator(store SessionStore, refresher Refresher, log *zap.SugaredLogger, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		store:     store,
		refresher: refresher,
		log:       log,
		metrics:   m,
	}
}

// OnSessionExpired registers fn to run once per failed refresh cycle, after
// the session has been cleared. Set it before the coordinator is used.
func (c *Coordinator) OnSessionExpired(fn func(error)) {
	c.onExpired = fn
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Refresh blocks until the current or a new refresh cycle settles.
//
// failedToken is the access token the caller was rejected with. If the
// coordinator is idle and the session already holds a different access
// token, a cycle that finished moments earlier has covered this caller and
// Refresh returns nil without another network call. Pass "" to force a cycle.
func (c *Coordinator) Refresh(ctx context.Context, failedToken string) error {
	done := c.join(ctx, failedToken)
	if done == nil {
		c.log.Debug("Access token already rotated, skipping refresh")
		return nil
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// join enqueues a waiter and starts a cycle when idle. It returns nil when no
// cycle is needed.
func (c *Coordinator) join(ctx context.Context, failedToken string) <-chan error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle && failedToken != "" {
		if current := c.store.Get().AccessToken; current != "" && current != failedToken {
			return nil
		}
	}

	done := make(chan error, 1)
	c.waiters = append(c.waiters, done)
	if c.state == StateIdle {
		c.startLocked(ctx)
	}
	return done
}

// Reset fails every pending waiter with reason and marks the outstanding call,
// if any, as stale. The stale call still runs to completion but its result is
// discarded.
func (c *Coordinator) Reset(reason error) {
	c.ResetWith(reason, nil)
}

// ResetWith is Reset with a session change applied in the same critical
// section, so no refresh can settle between the change and the epoch bump.
func (c *Coordinator) ResetWith(reason error, mutate func()) {
	c.mu.Lock()
	if mutate != nil {
		mutate()
	}
	c.epoch++
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	if len(waiters) > 0 {
		c.log.Infow("Failing refresh waiters on session reset", "waiters", len(waiters), "reason", reason)
	}
	for _, w := range waiters {
		w <- reason
	}
}

func (c *Coordinator) startLocked(ctx context.Context) {
	c.state = StateInFlight
	c.started = time.Now()
	refreshToken := c.store.Get().RefreshToken
	epoch := c.epoch

	// The call outlives any single caller's cancellation; the refresher's own
	// HTTP timeout bounds it.
	go c.run(context.WithoutCancel(ctx), refreshToken, epoch)
}

func (c *Coordinator) run(ctx context.Context, refreshToken string, epoch uint64) {
	resp, err := c.call(ctx, refreshToken)

	c.mu.Lock()
	elapsed := time.Since(c.started)

	if epoch != c.epoch {
		c.metrics.RefreshSettled(metrics.ResultDiscarded, 0, elapsed)
		c.log.Infow("Discarding refresh result of a reset session", "elapsed", elapsed, "error", err)
		if len(c.waiters) > 0 {
			c.startLocked(context.Background())
		} else {
			c.state = StateIdle
		}
		c.mu.Unlock()
		return
	}

	waiters := c.waiters
	c.waiters = nil
	c.state = StateIdle
	if err != nil {
		c.store.Clear()
	} else {
		next := resp.RefreshToken
		if next == "" {
			next = refreshToken
		}
		c.store.Set(resp.AccessToken, next)
	}
	c.mu.Unlock()

	if err != nil {
		c.metrics.RefreshSettled(metrics.ResultFailure, len(waiters), elapsed)
		c.log.Warnw("Refresh failed, session cleared", "waiters", len(waiters), "error", err)
	} else {
		c.metrics.RefreshSettled(metrics.ResultSuccess, len(waiters), elapsed)
		c.log.Debugw("Refresh succeeded", "waiters", len(waiters), "elapsed", elapsed, "rotated", resp.RefreshToken != "")
	}

	for _, w := range waiters {
		w <- err
	}

	if err != nil && c.onExpired != nil {
		c.onExpired(err)
	}
}

func (c *Coordinator) call(ctx context.Context, refreshToken string) (models.TokenRefreshResponse, error) {
	if refreshToken == "" {
		return models.TokenRefreshResponse{}, fmt.Errorf("%w: %w", ErrRefreshRejected, ErrNoRefreshToken)
	}

	resp, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return models.TokenRefreshResponse{}, fmt.Errorf("%w: %w", ErrRefreshRejected, err)
	}
	if resp.AccessToken == "" {
		return models.TokenRefreshResponse{}, fmt.Errorf("%w: %w", ErrRefreshRejected, ErrMalformedResponse)
	}
	return resp, nil
}
