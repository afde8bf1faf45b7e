// Package sorting implements the stock partition applied on top of a
// collection's primary product ordering.
//
// The engine is deliberately dual-layer: the input order (best-selling,
// price, alphabetical, whatever the primary sort key produced) is
// trusted as-is, and a single stable pass splits it at the stock
// boundary. Available products and excluded products keep their relative
// positions at the front; everything else keeps its relative positions
// behind them. No comparator runs inside either bucket.
package sorting

import (
	"github.com/roach88/backstock/internal/catalog"
	"github.com/roach88/backstock/internal/config"
)

// Stats summarizes one partition run. It travels back to the caller on
// the apply response.
type Stats struct {
	Total      int `json:"totalCount"`
	Kept       int `json:"keptCount"`
	PushedDown int `json:"pushedDownCount"`
}

// Partition splits products into the keep group and the push-down group.
//
// A product is kept iff it is available for sale or carries at least one
// exclusion tag. Tag matching is case-insensitive; exclusionTags must be
// canonical (config.CanonicalTags), product tags are folded here.
//
// The pass is O(n) and stable: relative order within each bucket is the
// input order.
func Partition(products []catalog.Product, exclusionTags []string) (keep, pushDown []catalog.Product) {
	excluded := make(map[string]bool, len(exclusionTags))
	for _, t := range exclusionTags {
		excluded[t] = true
	}

	for _, p := range products {
		if p.AvailableForSale || hasExcludedTag(p.Tags, excluded) {
			keep = append(keep, p)
		} else {
			pushDown = append(pushDown, p)
		}
	}
	return keep, pushDown
}

// Order returns the final product order (keep then push-down) with stats.
func Order(products []catalog.Product, exclusionTags []string) ([]catalog.Product, Stats) {
	keep, pushDown := Partition(products, exclusionTags)
	stats := Stats{
		Total:      len(products),
		Kept:       len(keep),
		PushedDown: len(pushDown),
	}
	return append(keep, pushDown...), stats
}

func hasExcludedTag(tags []string, excluded map[string]bool) bool {
	for _, t := range tags {
		if excluded[config.CanonicalTag(t)] {
			return true
		}
	}
	return false
}
