package reconcile

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/backstock/internal/config"
)

const (
	// DefaultMaxRetries is the number of automatic retries after the
	// initial attempt. Three failed attempts total reach PhaseError.
	DefaultMaxRetries = 2

	// DefaultTimeout converts a silent in-flight operation into a
	// failure. The late response, if it ever arrives, is discarded.
	DefaultTimeout = 10 * time.Second

	// DefaultCleanupDelay is how long terminal statuses stay visible
	// before garbage collection.
	DefaultCleanupDelay = 3 * time.Second

	// DefaultSweepInterval drives the timeout and cleanup sweeps.
	DefaultSweepInterval = time.Second
)

// Controller owns the desired and implemented state stores and the
// per-entity operation slots. All methods are safe for concurrent use.
type Controller struct {
	mu          sync.Mutex
	desired     map[string]config.State
	implemented map[string]config.State
	inflight    map[string]string // entity -> owning operation ID
	statuses    map[string]*Status

	applier       Applier
	idgen         IDGenerator
	now           func() time.Time
	maxRetries    int
	timeout       time.Duration
	cleanupDelay  time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxRetries overrides the automatic retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Controller) { c.maxRetries = n }
}

// WithTimeout overrides the in-flight operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithCleanupDelay overrides the terminal status retention.
func WithCleanupDelay(d time.Duration) Option {
	return func(c *Controller) { c.cleanupDelay = d }
}

// WithSweepInterval overrides the background sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Controller) { c.sweepInterval = d }
}

// WithNow injects a clock. Tests pair this with explicit sweep calls.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator injects the operation ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Controller) { c.idgen = g }
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New builds a Controller dispatching against the given applier.
func New(applier Applier, opts ...Option) *Controller {
	c := &Controller{
		desired:       make(map[string]config.State),
		implemented:   make(map[string]config.State),
		inflight:      make(map[string]string),
		statuses:      make(map[string]*Status),
		applier:       applier,
		idgen:         UUIDv7Generator{},
		now:           time.Now,
		maxRetries:    DefaultMaxRetries,
		timeout:       DefaultTimeout,
		cleanupDelay:  DefaultCleanupDelay,
		sweepInterval: DefaultSweepInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seed loads desired states without dispatching, for startup rebuild
// from the config store. Call Reconcile afterward to converge.
func (c *Controller) Seed(states map[string]config.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for e, st := range states {
		c.desired[e] = st.Clone()
	}
}

// SetDesired records a user mutation and reconciles. An entity in
// PhaseError is cleared first: new user intent supersedes the failed
// operation series.
func (c *Controller) SetDesired(entityID string, st config.State) {
	c.mu.Lock()
	if cur, ok := c.statuses[entityID]; ok && cur.Phase == PhaseError {
		delete(c.statuses, entityID)
	}
	c.desired[entityID] = st.Clone()
	c.mu.Unlock()

	c.Reconcile()
}

// Desired returns the entity's desired state, creating the default on
// first observation.
func (c *Controller) Desired(entityID string) config.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.desired[entityID]
	if !ok {
		st = config.Default()
		c.desired[entityID] = st
	}
	return st.Clone()
}

// Implemented returns the last confirmed applied state, if any.
func (c *Controller) Implemented(entityID string) (config.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.implemented[entityID]
	return st.Clone(), ok
}

// Status returns the entity's operation status; PhaseIdle when none.
func (c *Controller) Status(entityID string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.statuses[entityID]
	if !ok {
		return Status{Phase: PhaseIdle}
	}
	return *st
}

// Entities lists every entity with a desired state, sorted.
func (c *Controller) Entities() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.desired))
	for e := range c.desired {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// RetryOperation clears a PhaseError status so the next reconcile pass
// redispatches. A no-op in any other phase.
func (c *Controller) RetryOperation(entityID string) {
	c.mu.Lock()
	if st, ok := c.statuses[entityID]; ok && st.Phase == PhaseError {
		delete(c.statuses, entityID)
	}
	c.mu.Unlock()

	c.Reconcile()
}

// Reconcile dispatches an operation for every entity whose desired and
// implemented states differ and whose slot is free. Idempotent and safe
// to call from completion paths; redundant calls find nothing to do.
func (c *Controller) Reconcile() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e, want := range c.desired {
		if _, busy := c.inflight[e]; busy {
			continue
		}
		if st, ok := c.statuses[e]; ok && st.Phase == PhaseError {
			continue
		}
		if have, ok := c.implemented[e]; ok && have.Equal(want) {
			continue
		}
		c.dispatchLocked(e)
	}
}

// dispatchLocked claims the entity's slot and launches the remote apply.
// Caller holds c.mu.
func (c *Controller) dispatchLocked(entityID string) {
	target := c.desired[entityID].Clone()
	tag := OperationTag{
		ID:       c.idgen.Generate(),
		EntityID: entityID,
		Target:   target,
		IssuedAt: c.now(),
	}
	c.inflight[entityID] = tag.ID

	st, ok := c.statuses[entityID]
	if !ok || st.Phase.Terminal() {
		// A fresh operation series; Retry continues the previous one.
		st = &Status{}
		c.statuses[entityID] = st
	}
	st.Phase = PhaseProcessing
	st.Attempt++
	st.IssuedAt = tag.IssuedAt
	st.SettledAt = time.Time{}
	st.Stats = nil

	c.logger.Debug("dispatching apply operation",
		"entity_id", entityID, "operation_id", tag.ID, "attempt", st.Attempt)

	// In-flight operations are never cancelled; staleness is resolved at
	// response time, so the call gets a background context.
	go func() {
		resp := c.applier.Apply(context.Background(), ApplyRequest{
			EntityID: entityID,
			Target:   target,
			Tag:      tag,
		})
		c.settle(resp)
	}()
}

// settle validates a response against current state and applies the
// executor's branching: discard, commit, or retry/error.
func (c *Controller) settle(resp ApplyResponse) {
	entityID := resp.Tag.EntityID

	c.mu.Lock()
	owner, busy := c.inflight[entityID]
	if !busy || owner != resp.Tag.ID {
		// The slot was released by a timeout, or a newer operation owns
		// it. Either way this response is obsolete; drop it without
		// touching any state.
		c.mu.Unlock()
		c.logger.Debug("dropping response from superseded operation",
			"entity_id", entityID, "operation_id", resp.Tag.ID)
		return
	}

	want, ok := c.desired[entityID]
	if !ok || !want.Equal(resp.Tag.Target) {
		// Stale: the desired state moved on mid-flight. Not an error;
		// the reconcile pass below dispatches a fresh operation for the
		// newer target, starting its own attempt series.
		delete(c.inflight, entityID)
		delete(c.statuses, entityID)
		c.mu.Unlock()
		c.logger.Info("discarding stale response",
			"entity_id", entityID, "operation_id", resp.Tag.ID, "success", resp.Success)
		c.Reconcile()
		return
	}

	st := c.statuses[entityID]
	if resp.Success {
		c.implemented[entityID] = resp.Tag.Target.Clone()
		st.Phase = PhaseReady
		st.LastError = ""
		st.Stats = resp.Stats
		st.SettledAt = c.now()
		delete(c.inflight, entityID)
		c.mu.Unlock()
		c.logger.Info("apply confirmed",
			"entity_id", entityID, "operation_id", resp.Tag.ID)
		c.Reconcile()
		return
	}

	c.failLocked(entityID, st, resp.Error)
	c.mu.Unlock()
	c.Reconcile()
}

// failLocked applies the uniform failure branching: Retry while budget
// remains, Error once exhausted. Releases the slot. Caller holds c.mu.
func (c *Controller) failLocked(entityID string, st *Status, errMsg string) {
	delete(c.inflight, entityID)
	st.LastError = errMsg

	if st.Attempt <= c.maxRetries {
		st.Phase = PhaseRetry
		c.logger.Warn("apply failed, will retry",
			"entity_id", entityID, "attempt", st.Attempt, "error", errMsg)
		return
	}
	st.Phase = PhaseError
	st.SettledAt = c.now()
	c.logger.Error("apply failed, retry budget exhausted",
		"entity_id", entityID, "attempt", st.Attempt, "error", errMsg)
}

// sweep converts timed-out operations into failures and garbage
// collects settled statuses. Cleanup never touches implemented state and
// never triggers reconciliation on its own.
func (c *Controller) sweep() {
	now := c.now()
	redispatch := false

	c.mu.Lock()
	for e, st := range c.statuses {
		if st.Phase == PhaseProcessing && now.Sub(st.IssuedAt) >= c.timeout {
			c.failLocked(e, st, "operation timed out")
			redispatch = true
		}
	}
	for e, st := range c.statuses {
		if st.Phase.Terminal() && now.Sub(st.SettledAt) >= c.cleanupDelay {
			delete(c.statuses, e)
		}
	}
	c.mu.Unlock()

	if redispatch {
		c.Reconcile()
	}
}

// Run drives the timeout and cleanup sweeps until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}
