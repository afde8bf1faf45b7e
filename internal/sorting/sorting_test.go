package sorting

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/backstock/internal/catalog"
	"github.com/roach88/backstock/internal/config"
)

func product(id string, available bool, tags ...string) catalog.Product {
	return catalog.Product{ID: id, Title: id, Tags: tags, AvailableForSale: available}
}

func ids(products []catalog.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestPartition_StockBoundary(t *testing.T) {
	// A is sold out, B is available, C is sold out but tagged preorder.
	input := []catalog.Product{
		product("A", false),
		product("B", true),
		product("C", false, "preorder"),
	}

	keep, pushDown := Partition(input, config.CanonicalTags([]string{"preorder"}))
	assert.Equal(t, []string{"B", "C"}, ids(keep))
	assert.Equal(t, []string{"A"}, ids(pushDown))

	ordered, stats := Order(input, config.CanonicalTags([]string{"preorder"}))
	assert.Equal(t, []string{"B", "C", "A"}, ids(ordered))
	assert.Equal(t, Stats{Total: 3, Kept: 2, PushedDown: 1}, stats)
}

func TestPartition_Stable(t *testing.T) {
	// Relative order inside each bucket must be the input order.
	input := []catalog.Product{
		product("p1", true),
		product("p2", false),
		product("p3", true),
		product("p4", false),
		product("p5", true),
		product("p6", false),
	}

	keep, pushDown := Partition(input, nil)
	assert.Equal(t, []string{"p1", "p3", "p5"}, ids(keep))
	assert.Equal(t, []string{"p2", "p4", "p6"}, ids(pushDown))
}

func TestPartition_CaseInsensitiveExclusion(t *testing.T) {
	input := []catalog.Product{
		product("tagged", false, "PreOrder"),
		product("plain", false),
	}

	keep, pushDown := Partition(input, config.CanonicalTags([]string{"preorder"}))
	assert.Equal(t, []string{"tagged"}, ids(keep), "PreOrder must match exclusion tag preorder")
	assert.Equal(t, []string{"plain"}, ids(pushDown))
}

func TestPartition_EmptyInput(t *testing.T) {
	keep, pushDown := Partition(nil, config.CanonicalTags([]string{"preorder"}))
	assert.Empty(t, keep)
	assert.Empty(t, pushDown)

	ordered, stats := Order(nil, nil)
	assert.Empty(t, ordered)
	assert.Equal(t, Stats{}, stats)
}

func TestPartition_AllKept(t *testing.T) {
	input := []catalog.Product{product("a", true), product("b", true)}
	keep, pushDown := Partition(input, nil)
	assert.Len(t, keep, 2)
	assert.Empty(t, pushDown)
}

func TestOrder_Golden(t *testing.T) {
	input := []catalog.Product{
		product("gid://shopify/Product/1", true, "new"),
		product("gid://shopify/Product/2", false),
		product("gid://shopify/Product/3", false, "Pre-Launch"),
		product("gid://shopify/Product/4", true),
		product("gid://shopify/Product/5", false, "clearance"),
	}

	ordered, stats := Order(input, config.CanonicalTags([]string{"pre-launch"}))

	snapshot := struct {
		Order []string `json:"order"`
		Stats Stats    `json:"stats"`
	}{Order: ids(ordered), Stats: stats}

	raw, err := json.MarshalIndent(snapshot, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "order_pre_launch", raw)
}
