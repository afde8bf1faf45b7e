// Package reorder applies a target product ordering to a remote
// collection and waits (bounded) for the catalog's asynchronous reorder
// job to confirm.
//
// The pipeline is: switch the collection into manual ordering, submit
// one move per product, then poll the returned job. The manual mode is
// never reverted afterward: the written sequence already encodes the
// primary ordering plus the stock push-down, and flipping back to an
// automatic key would let the next remote re-sort silently discard the
// push-down.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/backstock/internal/catalog"
)

const (
	// DefaultPollInterval is how often a pending reorder job is polled.
	DefaultPollInterval = 2 * time.Second

	// DefaultMaxWait bounds how long ApplyOrder waits for confirmation.
	// Hitting the bound is a warning, not a failure: the catalog already
	// accepted the moves.
	DefaultMaxWait = 30 * time.Second
)

// ErrOrderingMode marks a failed switch into manual ordering. It is a
// precondition failure: no moves were submitted.
var ErrOrderingMode = errors.New("ordering mode switch failed")

// Client drives the reorder pipeline against one catalog.
type Client struct {
	catalog      catalog.Catalog
	pollInterval time.Duration
	maxWait      time.Duration
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithPollInterval overrides the job polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithMaxWait overrides the confirmation wait bound.
func WithMaxWait(d time.Duration) Option {
	return func(c *Client) { c.maxWait = d }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a reorder client over the given catalog.
func NewClient(cat catalog.Catalog, opts ...Option) *Client {
	c := &Client{
		catalog:      cat,
		pollInterval: DefaultPollInterval,
		maxWait:      DefaultMaxWait,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ApplyOrder writes orderedProductIDs as the collection's explicit
// product sequence. Returns the reorder job ID when the catalog handed
// one out.
//
// A job that fails to confirm within the wait bound is logged and
// treated as success; a failed mode switch or rejected move list is an
// error and nothing is partially applied.
func (c *Client) ApplyOrder(ctx context.Context, collectionID string, orderedProductIDs []string) (jobID string, err error) {
	if err := c.catalog.SetOrderingMode(ctx, collectionID, catalog.ModeManual); err != nil {
		return "", fmt.Errorf("%w for %s: %v", ErrOrderingMode, collectionID, err)
	}

	moves := make([]catalog.Move, len(orderedProductIDs))
	for i, id := range orderedProductIDs {
		moves[i] = catalog.Move{ID: id, NewPosition: i}
	}

	job, err := c.catalog.Reorder(ctx, collectionID, moves)
	if err != nil {
		return "", fmt.Errorf("submit reorder for %s: %w", collectionID, err)
	}
	if job.Done {
		return job.ID, nil
	}

	if err := c.awaitJob(ctx, collectionID, job.ID); err != nil {
		return job.ID, err
	}
	return job.ID, nil
}

// awaitJob polls the job until done or the wait bound expires. Only a
// context cancellation or poll transport error is returned as an error.
func (c *Client) awaitJob(ctx context.Context, collectionID, jobID string) error {
	deadline := time.Now().Add(c.maxWait)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("await reorder job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}

		job, err := c.catalog.GetJobStatus(ctx, jobID)
		if err != nil {
			return fmt.Errorf("poll reorder job %s: %w", jobID, err)
		}
		if job.Done {
			return nil
		}
		if time.Now().After(deadline) {
			c.logger.Warn("reorder job not confirmed within wait bound, proceeding",
				"collection_id", collectionID, "job_id", jobID, "max_wait", c.maxWait)
			return nil
		}
	}
}
