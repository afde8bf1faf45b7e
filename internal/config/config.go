// Package config defines the per-collection push-down configuration and
// its equality semantics.
//
// Two instances of State exist for every collection the system knows
// about: the desired state (what the merchant asked for) and the
// implemented state (what was last confirmed applied to the remote
// catalog). The reconciler compares them structurally, so equality here
// is the single source of truth for "needs an operation".
//
// Exclusion tags are stored canonically: NFC-normalized and lower-cased,
// deduplicated, sorted. Matching against product tags is therefore a
// plain string comparison downstream.
package config

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SortKey identifies the primary product ordering for a collection.
// The remote catalog produces this ordering; the sort engine only
// partitions on top of it.
type SortKey string

const (
	SortKeyBestSelling SortKey = "best-selling"
	SortKeyAlphaAsc    SortKey = "alpha-asc"
	SortKeyAlphaDesc   SortKey = "alpha-desc"
	SortKeyPriceAsc    SortKey = "price-asc"
	SortKeyPriceDesc   SortKey = "price-desc"
	SortKeyCreatedDesc SortKey = "created-desc"
	SortKeyManual      SortKey = "manual"
)

// DefaultSortKey is assigned when a collection is first observed.
const DefaultSortKey = SortKeyBestSelling

var sortKeys = map[SortKey]bool{
	SortKeyBestSelling: true,
	SortKeyAlphaAsc:    true,
	SortKeyAlphaDesc:   true,
	SortKeyPriceAsc:    true,
	SortKeyPriceDesc:   true,
	SortKeyCreatedDesc: true,
	SortKeyManual:      true,
}

// ParseSortKey validates a user-supplied sort key string.
func ParseSortKey(s string) (SortKey, error) {
	key := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if !sortKeys[key] {
		return "", fmt.Errorf("unknown sort key %q", s)
	}
	return key, nil
}

// State is one collection's push-down configuration.
//
// ExclusionTags is always canonical (see CanonicalTags). Construct State
// values through New, or canonicalize the tags yourself before assigning.
type State struct {
	Enabled       bool
	SortKey       SortKey
	ExclusionTags []string
}

// New builds a State with canonical exclusion tags.
func New(enabled bool, sortKey SortKey, exclusionTags []string) State {
	return State{
		Enabled:       enabled,
		SortKey:       sortKey,
		ExclusionTags: CanonicalTags(exclusionTags),
	}
}

// Default is the state assigned when a collection is first observed:
// push-down disabled, best-selling primary order, no exclusions.
func Default() State {
	return State{Enabled: false, SortKey: DefaultSortKey}
}

// Equal reports structural equality. Exclusion tags compare as sets:
// both sides are canonical, so element-wise comparison suffices.
func (s State) Equal(o State) bool {
	return s.Enabled == o.Enabled &&
		s.SortKey == o.SortKey &&
		slices.Equal(s.ExclusionTags, o.ExclusionTags)
}

// Clone returns a deep copy. Snapshots attached to operation tags must
// not alias the live desired-state slice.
func (s State) Clone() State {
	out := s
	out.ExclusionTags = slices.Clone(s.ExclusionTags)
	return out
}

// CanonicalTag normalizes a single tag: NFC form, lower-cased, trimmed.
// Tag matching throughout the system is case-insensitive, and this is
// the canonical spelling everything is folded to.
func CanonicalTag(tag string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(tag)))
}

// CanonicalTags normalizes, deduplicates, and sorts a tag list. Empty
// tags are dropped. A nil or empty input yields nil.
func CanonicalTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		c := CanonicalTag(t)
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}
