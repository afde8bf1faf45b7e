// Package apply implements the remote apply service: persist a
// collection's push-down configuration and, when enabled, sort the
// collection and write the resulting order back to the catalog.
//
// The service sits behind the reconcile.Applier boundary. Everything it
// returns travels on the ApplyResponse; no error escapes as a fault.
// The operation tag on the request is echoed back verbatim so the
// executor can detect superseded responses.
package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/backstock/internal/catalog"
	"github.com/roach88/backstock/internal/config"
	"github.com/roach88/backstock/internal/reconcile"
	"github.com/roach88/backstock/internal/sorting"
)

// ConfigStore persists per-collection configuration.
type ConfigStore interface {
	Upsert(ctx context.Context, owner, collectionID string, st config.State) error
}

// Reorderer writes an explicit product order to a collection.
// Implemented by reorder.Client.
type Reorderer interface {
	ApplyOrder(ctx context.Context, collectionID string, orderedProductIDs []string) (jobID string, err error)
}

// Service is the remote apply service for one shop.
type Service struct {
	owner   string
	store   ConfigStore
	catalog catalog.Catalog
	reorder Reorderer
	logger  *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService builds the apply service for one shop (the owner scope for
// persisted configuration).
func NewService(owner string, store ConfigStore, cat catalog.Catalog, r Reorderer, opts ...ServiceOption) *Service {
	s := &Service{
		owner:   owner,
		store:   store,
		catalog: cat,
		reorder: r,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply implements reconcile.Applier.
//
// Pipeline: validate, persist the configuration, and when push-down is
// enabled fetch the collection in primary order, partition it at the
// stock boundary, and write the combined order back. The response
// always carries the request's tag.
func (s *Service) Apply(ctx context.Context, req reconcile.ApplyRequest) (resp reconcile.ApplyResponse) {
	resp.Tag = req.Tag

	defer func() {
		if r := recover(); r != nil {
			resp.Success = false
			resp.Error = fmt.Sprintf("apply panicked: %v", r)
			s.logger.Error("apply panicked", "entity_id", req.EntityID, "panic", r)
		}
	}()

	if err := validate(req); err != nil {
		return s.fail(resp, req.EntityID, err)
	}

	if err := s.store.Upsert(ctx, s.owner, req.EntityID, req.Target); err != nil {
		return s.fail(resp, req.EntityID, Classify(req.EntityID, fmt.Errorf("persist config: %w", err)))
	}

	if !req.Target.Enabled {
		// Nothing to sort; persisting the disabled config is the whole
		// operation. The collection keeps whatever order it has.
		resp.Success = true
		return resp
	}

	_, reverse, err := catalog.SortSpec(req.Target.SortKey)
	if err != nil {
		return s.fail(resp, req.EntityID, &Error{Code: CodeValidation, EntityID: req.EntityID, Err: err})
	}

	products, err := s.catalog.FetchProducts(ctx, req.EntityID, req.Target.SortKey, reverse)
	if err != nil {
		return s.fail(resp, req.EntityID, Classify(req.EntityID, err))
	}

	ordered, stats := sorting.Order(products, req.Target.ExclusionTags)
	ids := make([]string, len(ordered))
	for i, p := range ordered {
		ids[i] = p.ID
	}

	if _, err := s.reorder.ApplyOrder(ctx, req.EntityID, ids); err != nil {
		return s.fail(resp, req.EntityID, Classify(req.EntityID, err))
	}

	s.logger.Info("apply complete",
		"entity_id", req.EntityID,
		"total", stats.Total,
		"pushed_down", stats.PushedDown)

	resp.Success = true
	resp.Stats = &stats
	return resp
}

func (s *Service) fail(resp reconcile.ApplyResponse, entityID string, err error) reconcile.ApplyResponse {
	var ae *Error
	if !errors.As(err, &ae) {
		ae = Classify(entityID, err)
	}
	s.logger.Warn("apply failed",
		"entity_id", entityID, "code", string(ae.Code), "error", ae.Err)

	resp.Success = false
	resp.Error = ae.Error()
	return resp
}

func validate(req reconcile.ApplyRequest) error {
	if req.EntityID == "" {
		return &Error{Code: CodeValidation, Err: errors.New("missing entity id")}
	}
	if req.Target.SortKey == "" {
		return &Error{Code: CodeValidation, EntityID: req.EntityID, Err: errors.New("missing sort key")}
	}
	return nil
}
