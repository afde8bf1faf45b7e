package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/backstock/internal/config"
)

// Fake is an in-memory Catalog for tests. It records every call and
// lets tests inject failures and control job completion.
//
// Production code never constructs a Fake; it lives here (not in a
// _test.go file) so other packages' tests can share it.
type Fake struct {
	mu sync.Mutex

	products map[string][]Product    // collectionID -> products in catalog order
	modes    map[string]OrderingMode // collectionID -> current ordering mode
	jobs     map[string]bool         // jobID -> done
	nextJob  int

	// Failure injection. Each non-nil error fails the corresponding
	// call unconditionally; FailModeSwitches fails only the next N
	// mode switches.
	FetchErr         error
	ModeSwitchErr    error
	ReorderErr       error
	JobStatusErr     error
	FailModeSwitches int

	// JobDoneAfterPolls makes submitted jobs report done only after this
	// many GetJobStatus calls. Zero means jobs are done immediately.
	JobDoneAfterPolls int

	// Call records, in order.
	ModeSwitches []OrderingMode
	ReorderCalls [][]Move
	PollCount    int
}

// NewFake returns an empty fake catalog.
func NewFake() *Fake {
	return &Fake{
		products: make(map[string][]Product),
		modes:    make(map[string]OrderingMode),
		jobs:     make(map[string]bool),
	}
}

// SetProducts seeds a collection's product list in catalog order.
func (f *Fake) SetProducts(collectionID string, products []Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[collectionID] = products
}

// Mode returns the collection's current ordering mode.
func (f *Fake) Mode(collectionID string) (OrderingMode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.modes[collectionID]
	return m, ok
}

func (f *Fake) FetchProducts(_ context.Context, collectionID string, _ config.SortKey, _ bool) ([]Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	ps, ok := f.products[collectionID]
	if !ok {
		return nil, fmt.Errorf("collection %s not found", collectionID)
	}
	out := make([]Product, len(ps))
	copy(out, ps)
	return out, nil
}

func (f *Fake) SetOrderingMode(_ context.Context, collectionID string, mode OrderingMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ModeSwitchErr != nil {
		return f.ModeSwitchErr
	}
	if f.FailModeSwitches > 0 {
		f.FailModeSwitches--
		return fmt.Errorf("injected mode switch failure for %s", collectionID)
	}
	f.modes[collectionID] = mode
	f.ModeSwitches = append(f.ModeSwitches, mode)
	return nil
}

func (f *Fake) Reorder(_ context.Context, collectionID string, moves []Move) (ReorderJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReorderErr != nil {
		return ReorderJob{}, f.ReorderErr
	}
	recorded := make([]Move, len(moves))
	copy(recorded, moves)
	f.ReorderCalls = append(f.ReorderCalls, recorded)

	f.nextJob++
	jobID := fmt.Sprintf("gid://shopify/Job/%d", f.nextJob)
	done := f.JobDoneAfterPolls == 0
	f.jobs[jobID] = done
	return ReorderJob{ID: jobID, Done: done}, nil
}

func (f *Fake) GetJobStatus(_ context.Context, jobID string) (ReorderJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.JobStatusErr != nil {
		return ReorderJob{}, f.JobStatusErr
	}
	f.PollCount++
	done, ok := f.jobs[jobID]
	if !ok {
		return ReorderJob{ID: jobID, Done: true}, nil
	}
	if !done && f.PollCount >= f.JobDoneAfterPolls {
		done = true
		f.jobs[jobID] = true
	}
	return ReorderJob{ID: jobID, Done: done}, nil
}
