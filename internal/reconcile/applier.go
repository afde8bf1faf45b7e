package reconcile

import (
	"context"

	"github.com/roach88/backstock/internal/config"
	"github.com/roach88/backstock/internal/sorting"
)

// ApplyRequest asks the remote apply service to make Target real for
// one entity. Tag is an opaque echo.
type ApplyRequest struct {
	EntityID string
	Target   config.State
	Tag      OperationTag
}

// ApplyResponse reports the outcome of one apply. Tag is the request's
// tag, returned verbatim. Error is a human-readable failure description;
// Stats is present on successful applies that ran the sort.
type ApplyResponse struct {
	Success bool
	Tag     OperationTag
	Error   string
	Stats   *sorting.Stats
}

// Applier is the remote apply boundary the executor dispatches against.
//
// Apply may block for the full duration of the remote work, including
// reorder job polling. It must never panic across the boundary; all
// failures are reported through the response.
type Applier interface {
	Apply(ctx context.Context, req ApplyRequest) ApplyResponse
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(ctx context.Context, req ApplyRequest) ApplyResponse

// Apply implements Applier.
func (f ApplierFunc) Apply(ctx context.Context, req ApplyRequest) ApplyResponse {
	return f(ctx, req)
}
