package ports

import (
	"context"

	"github.com/espenbo/sparkedge/internal/domain"
)

// SnapshotProvider produces a fresh reading of every metric the node knows
// about. Reads may involve device I/O and may partially fail: a source that
// is absent on this machine (no battery, no fan sensor) omits its key
// rather than failing the whole snapshot. Only a total failure returns an
// error.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
}
