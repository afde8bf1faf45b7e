package apply

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/backstock/internal/catalog"
	"github.com/roach88/backstock/internal/config"
	"github.com/roach88/backstock/internal/reconcile"
	"github.com/roach88/backstock/internal/reorder"
)

const (
	owner  = "example.myshopify.com"
	collID = "gid://shopify/Collection/1"
)

type upsertRecord struct {
	owner        string
	collectionID string
	state        config.State
}

type memStore struct {
	mu      sync.Mutex
	upserts []upsertRecord
	err     error
}

func (m *memStore) Upsert(_ context.Context, owner, collectionID string, st config.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.upserts = append(m.upserts, upsertRecord{owner, collectionID, st})
	return nil
}

func newService(store *memStore, fake *catalog.Fake) *Service {
	rc := reorder.NewClient(fake,
		reorder.WithPollInterval(time.Millisecond),
		reorder.WithMaxWait(20*time.Millisecond),
	)
	return NewService(owner, store, fake, rc)
}

func request(target config.State) reconcile.ApplyRequest {
	return reconcile.ApplyRequest{
		EntityID: collID,
		Target:   target,
		Tag: reconcile.OperationTag{
			ID:       "op-1",
			EntityID: collID,
			Target:   target,
			IssuedAt: time.Unix(1_700_000_000, 0),
		},
	}
}

func TestService_Apply_SortsAndReorders(t *testing.T) {
	store := &memStore{}
	fake := catalog.NewFake()
	fake.SetProducts(collID, []catalog.Product{
		{ID: "p1", AvailableForSale: false},
		{ID: "p2", AvailableForSale: true},
		{ID: "p3", AvailableForSale: false, Tags: []string{"PreOrder"}},
	})
	svc := newService(store, fake)

	target := config.New(true, config.SortKeyBestSelling, []string{"preorder"})
	req := request(target)
	resp := svc.Apply(context.Background(), req)

	require.True(t, resp.Success, "apply failed: %s", resp.Error)
	assert.Equal(t, req.Tag, resp.Tag, "tag must be echoed verbatim")

	require.NotNil(t, resp.Stats)
	assert.Equal(t, 3, resp.Stats.Total)
	assert.Equal(t, 2, resp.Stats.Kept)
	assert.Equal(t, 1, resp.Stats.PushedDown)

	// Config persisted under the owner scope.
	require.Len(t, store.upserts, 1)
	assert.Equal(t, owner, store.upserts[0].owner)
	assert.Equal(t, collID, store.upserts[0].collectionID)
	assert.True(t, store.upserts[0].state.Equal(target))

	// Order written back: available and excluded first, sold-out last.
	require.Len(t, fake.ReorderCalls, 1)
	assert.Equal(t, []catalog.Move{
		{ID: "p2", NewPosition: 0},
		{ID: "p3", NewPosition: 1},
		{ID: "p1", NewPosition: 2},
	}, fake.ReorderCalls[0])

	mode, ok := fake.Mode(collID)
	require.True(t, ok)
	assert.Equal(t, catalog.ModeManual, mode)
}

func TestService_Apply_DisabledPersistsOnly(t *testing.T) {
	store := &memStore{}
	fake := catalog.NewFake() // no products seeded: any fetch would fail
	svc := newService(store, fake)

	resp := svc.Apply(context.Background(), request(config.New(false, config.SortKeyBestSelling, nil)))

	require.True(t, resp.Success)
	assert.Nil(t, resp.Stats)
	assert.Len(t, store.upserts, 1)
	assert.Empty(t, fake.ReorderCalls, "disabled config must not touch the catalog order")
}

func TestService_Apply_ValidationError(t *testing.T) {
	store := &memStore{}
	svc := newService(store, catalog.NewFake())

	req := request(config.New(true, config.SortKeyBestSelling, nil))
	req.EntityID = ""
	resp := svc.Apply(context.Background(), req)

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, string(CodeValidation))
	assert.Equal(t, req.Tag, resp.Tag)
	assert.Empty(t, store.upserts, "invalid requests must not persist anything")
}

func TestService_Apply_StoreFailureIsTransient(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	svc := newService(store, catalog.NewFake())

	resp := svc.Apply(context.Background(), request(config.New(false, config.SortKeyBestSelling, nil)))

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, string(CodeTransient))
	assert.Contains(t, resp.Error, "disk full")
}

func TestService_Apply_ModeSwitchIsPrecondition(t *testing.T) {
	store := &memStore{}
	fake := catalog.NewFake()
	fake.SetProducts(collID, []catalog.Product{{ID: "p1", AvailableForSale: true}})
	fake.FailModeSwitches = 1
	svc := newService(store, fake)

	resp := svc.Apply(context.Background(), request(config.New(true, config.SortKeyBestSelling, nil)))

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, string(CodePrecondition))
	assert.Empty(t, fake.ReorderCalls, "no moves after a precondition failure")
}

func TestService_Apply_CatalogRejectionIsRemoteUser(t *testing.T) {
	store := &memStore{}
	fake := catalog.NewFake()
	fake.SetProducts(collID, []catalog.Product{{ID: "p1", AvailableForSale: true}})
	fake.ReorderErr = &catalog.UserError{Messages: []string{"invalid move"}}
	svc := newService(store, fake)

	resp := svc.Apply(context.Background(), request(config.New(true, config.SortKeyBestSelling, nil)))

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, string(CodeRemoteUser))
	assert.Contains(t, resp.Error, "invalid move")
}

func TestService_Apply_FetchFailureIsTransient(t *testing.T) {
	store := &memStore{}
	fake := catalog.NewFake()
	fake.FetchErr = errors.New("connection reset")
	svc := newService(store, fake)

	resp := svc.Apply(context.Background(), request(config.New(true, config.SortKeyBestSelling, nil)))

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, string(CodeTransient))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"ordering mode", reorder.ErrOrderingMode, CodePrecondition},
		{"wrapped ordering mode", errors.Join(errors.New("ctx"), reorder.ErrOrderingMode), CodePrecondition},
		{"user error", &catalog.UserError{Messages: []string{"nope"}}, CodeRemoteUser},
		{"plain network", errors.New("timeout"), CodeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(collID, tt.err)
			assert.Equal(t, tt.want, got.Code)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}
