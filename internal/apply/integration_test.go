package apply

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/backstock/internal/catalog"
	"github.com/roach88/backstock/internal/config"
	"github.com/roach88/backstock/internal/reconcile"
)

// These tests run the full pipeline: controller -> executor -> apply
// service -> reorder client -> fake catalog.

func newPipeline(t *testing.T, fake *catalog.Fake) (*reconcile.Controller, *memStore) {
	t.Helper()
	store := &memStore{}
	svc := newService(store, fake)
	c := reconcile.New(svc,
		reconcile.WithLogger(slog.New(slog.DiscardHandler)),
		reconcile.WithIDGenerator(reconcile.NewFixedIDGenerator("op")),
	)
	return c, store
}

func waitReady(t *testing.T, c *reconcile.Controller, entityID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Status(entityID).Phase == reconcile.PhaseReady
	}, 2*time.Second, time.Millisecond)
}

func TestPipeline_EnableSortsCollection(t *testing.T) {
	fake := catalog.NewFake()
	fake.SetProducts(collID, []catalog.Product{
		{ID: "p1", AvailableForSale: false},
		{ID: "p2", AvailableForSale: true},
		{ID: "p3", AvailableForSale: false, Tags: []string{"PreOrder"}},
		{ID: "p4", AvailableForSale: true},
	})
	c, store := newPipeline(t, fake)

	target := config.New(true, config.SortKeyBestSelling, []string{"preorder"})
	c.SetDesired(collID, target)
	waitReady(t, c, collID)

	// Implemented state matches desired; stats reflect the partition.
	impl, ok := c.Implemented(collID)
	require.True(t, ok)
	assert.True(t, impl.Equal(target))

	st := c.Status(collID)
	require.NotNil(t, st.Stats)
	assert.Equal(t, 4, st.Stats.Total)
	assert.Equal(t, 3, st.Stats.Kept)
	assert.Equal(t, 1, st.Stats.PushedDown)

	// The catalog got the manual order with p1 sunk to the bottom.
	require.Len(t, fake.ReorderCalls, 1)
	assert.Equal(t, []catalog.Move{
		{ID: "p2", NewPosition: 0},
		{ID: "p3", NewPosition: 1},
		{ID: "p4", NewPosition: 2},
		{ID: "p1", NewPosition: 3},
	}, fake.ReorderCalls[0])

	mode, ok := fake.Mode(collID)
	require.True(t, ok)
	assert.Equal(t, catalog.ModeManual, mode)

	// And the config was persisted under the shop scope.
	require.NotEmpty(t, store.upserts)
	assert.True(t, store.upserts[len(store.upserts)-1].state.Equal(target))
}

func TestPipeline_TransientFailureRetriesToReady(t *testing.T) {
	fake := catalog.NewFake()
	fake.SetProducts(collID, []catalog.Product{{ID: "p1", AvailableForSale: true}})
	fake.FailModeSwitches = 1 // first attempt fails, retry succeeds
	c, _ := newPipeline(t, fake)

	c.SetDesired(collID, config.New(true, config.SortKeyBestSelling, nil))
	waitReady(t, c, collID)

	st := c.Status(collID)
	assert.Equal(t, 2, st.Attempt, "one failed attempt plus one successful retry")
}

func TestPipeline_ExhaustedRetriesRequireExplicitRetry(t *testing.T) {
	fake := catalog.NewFake()
	fake.SetProducts(collID, []catalog.Product{{ID: "p1", AvailableForSale: true}})
	fake.FailModeSwitches = 3 // the whole budget
	c, _ := newPipeline(t, fake)

	c.SetDesired(collID, config.New(true, config.SortKeyBestSelling, nil))
	require.Eventually(t, func() bool {
		return c.Status(collID).Phase == reconcile.PhaseError
	}, 2*time.Second, time.Millisecond)

	assert.Contains(t, c.Status(collID).LastError, string(CodePrecondition))
	_, ok := c.Implemented(collID)
	assert.False(t, ok)

	// The fake is healthy again; an explicit retry converges.
	c.RetryOperation(collID)
	waitReady(t, c, collID)
}

func TestPipeline_DisableThenEnable(t *testing.T) {
	fake := catalog.NewFake()
	fake.SetProducts(collID, []catalog.Product{
		{ID: "p1", AvailableForSale: false},
		{ID: "p2", AvailableForSale: true},
	})
	c, _ := newPipeline(t, fake)

	c.SetDesired(collID, config.New(false, config.SortKeyBestSelling, nil))
	waitReady(t, c, collID)
	assert.Empty(t, fake.ReorderCalls, "disabled config must not reorder")

	c.SetDesired(collID, config.New(true, config.SortKeyBestSelling, nil))
	require.Eventually(t, func() bool {
		impl, ok := c.Implemented(collID)
		return ok && impl.Enabled
	}, 2*time.Second, time.Millisecond)
	assert.NotEmpty(t, fake.ReorderCalls)
}
