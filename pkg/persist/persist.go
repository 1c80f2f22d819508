// Package persist converts grids and their placed items to serializable
// snapshots and back.
//
// A SaveState holds only the occupancy bitmap; the visual state is derived
// and is always recomputed after loading.
package persist

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/inventory-engine/pkg/grid"
)

// ErrSizeMismatch is returned when a snapshot's cell count differs from the
// target grid's Width*Height.
var ErrSizeMismatch = errors.New("snapshot size does not match grid")

// SaveState is the occupancy bitmap of a grid, row-major, true = free.
type SaveState struct {
	Free []bool `json:"free"`
}

// Save copies the occupancy bitmap of g.
func Save(g *grid.Grid) SaveState {
	return SaveState{Free: g.FreeMap()}
}

// Load replaces the occupancy bitmap of g with a copy of s. On a length
// mismatch g is left unchanged. The visual state is stale afterwards; call
// g.RecomputeAll, or use Restore.
func Load(g *grid.Grid, s SaveState) error {
	if !g.SetFreeMap(s.Free) {
		return fmt.Errorf("%w: got %d cells, want %d", ErrSizeMismatch, len(s.Free), g.Len())
	}
	return nil
}

// Restore loads s into g and recomputes the visual state.
func Restore(g *grid.Grid, s SaveState) error {
	if err := Load(g, s); err != nil {
		return err
	}
	g.RecomputeAll()
	return nil
}
