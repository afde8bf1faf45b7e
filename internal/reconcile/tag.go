package reconcile

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/backstock/internal/config"
)

// OperationTag snapshots the target state of one dispatched operation.
// It is immutable once created, carried through the remote call, and
// echoed back verbatim. The executor uses it to detect superseded
// responses; the remote side never inspects it.
type OperationTag struct {
	ID       string
	EntityID string
	Target   config.State
	IssuedAt time.Time
}

// IDGenerator generates unique operation IDs.
// Implemented by UUIDv7Generator (production) and FixedIDGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUIDs for operation IDs.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedIDGenerator generates deterministic sequential IDs for tests.
type FixedIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewFixedIDGenerator returns a generator producing "<prefix>-1",
// "<prefix>-2", and so on.
func NewFixedIDGenerator(prefix string) *FixedIDGenerator {
	return &FixedIDGenerator{prefix: prefix}
}

// Generate returns the next sequential ID.
func (g *FixedIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
