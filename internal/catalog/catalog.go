// Package catalog models the remote product catalog and provides the
// Shopify Admin GraphQL client used to read and reorder collection
// products.
//
// The Catalog interface is the system-of-record boundary: the apply
// service fetches products through it, and the reorder client drives
// ordering-mode switches, move submissions, and job polling through it.
// Production uses Client; tests use Fake.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/backstock/internal/config"
)

// Product is one catalog product as seen through a collection.
// AvailableForSale is the canonical in-stock signal: it already folds in
// the merchant's continue-selling policy, unlike raw inventory counts.
type Product struct {
	ID               string
	Title            string
	Tags             []string
	AvailableForSale bool
}

// Move places a product at a zero-based position within its collection.
type Move struct {
	ID          string
	NewPosition int
}

// ReorderJob is the remote system's handle for an asynchronous reorder.
// Owned by the catalog; this system only polls it.
type ReorderJob struct {
	ID   string
	Done bool
}

// OrderingMode is the remote collection's product ordering driver.
// ModeManual means an explicit stored sequence; every other mode is an
// automatic key the remote re-applies on its own.
type OrderingMode string

const (
	ModeManual      OrderingMode = "MANUAL"
	ModeBestSelling OrderingMode = "BEST_SELLING"
	ModeAlphaAsc    OrderingMode = "ALPHA_ASC"
	ModeAlphaDesc   OrderingMode = "ALPHA_DESC"
	ModePriceAsc    OrderingMode = "PRICE_ASC"
	ModePriceDesc   OrderingMode = "PRICE_DESC"
	ModeCreatedDesc OrderingMode = "CREATED_DESC"
)

// Catalog is the remote system-of-record boundary.
//
// Implementations must be safe for concurrent use: operations for
// distinct collections may be in flight at the same time.
type Catalog interface {
	// FetchProducts returns every product in the collection, ordered by
	// the requested sort key. Pagination is handled internally.
	FetchProducts(ctx context.Context, collectionID string, sortKey config.SortKey, reverse bool) ([]Product, error)

	// SetOrderingMode switches the collection's ordering driver.
	SetOrderingMode(ctx context.Context, collectionID string, mode OrderingMode) error

	// Reorder submits a move list. The returned job may already be done.
	Reorder(ctx context.Context, collectionID string, moves []Move) (ReorderJob, error)

	// GetJobStatus polls a previously returned reorder job.
	GetJobStatus(ctx context.Context, jobID string) (ReorderJob, error)
}

// SortSpec maps a configured sort key onto the GraphQL product sort key
// and reverse flag the catalog expects.
func SortSpec(key config.SortKey) (gqlKey string, reverse bool, err error) {
	switch key {
	case config.SortKeyBestSelling:
		return "BEST_SELLING", false, nil
	case config.SortKeyAlphaAsc:
		return "TITLE", false, nil
	case config.SortKeyAlphaDesc:
		return "TITLE", true, nil
	case config.SortKeyPriceAsc:
		return "PRICE", false, nil
	case config.SortKeyPriceDesc:
		return "PRICE", true, nil
	case config.SortKeyCreatedDesc:
		return "CREATED", true, nil
	case config.SortKeyManual:
		return "MANUAL", false, nil
	default:
		return "", false, fmt.Errorf("no catalog sort spec for key %q", key)
	}
}

// UserError is a business-rule rejection from the catalog (a GraphQL
// userErrors payload), as opposed to a transport failure. It counts
// against the normal retry budget but is surfaced with its messages.
type UserError struct {
	Messages []string
}

func (e *UserError) Error() string {
	return "catalog rejected request: " + strings.Join(e.Messages, "; ")
}
