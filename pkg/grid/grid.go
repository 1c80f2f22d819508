// Package grid tracks cell occupancy for a fixed-size inventory and keeps a
// derived per-cell visual state for renderers.
//
// Cells are addressed by (x, y) with origin at the top-left and linearized
// row-major as y*Width + x. A Grid is not safe for concurrent use; callers
// that share one across goroutines must serialize access themselves.
package grid

import (
	"github.com/jwebster45206/inventory-engine/pkg/shape"
)

// MaxVisualState is the largest value VisualState can return: an occupied
// cell with all four orthogonal neighbors occupied.
const MaxVisualState = 4

// Grid is a Width x Height occupancy bitmap.
type Grid struct {
	width  int
	height int
	free   []bool
	visual []uint8
}

// New creates a grid with every cell free. Dimensions below 1 are raised
// to 1.
func New(width, height int) *Grid {
	width = max(1, width)
	height = max(1, height)
	g := &Grid{
		width:  width,
		height: height,
		free:   make([]bool, width*height),
		visual: make([]uint8, width*height),
	}
	for i := range g.free {
		g.free[i] = true
	}
	return g
}

// NewFromMask creates a grid sized like the container mask. A cell is
// disabled (permanently not free) wherever the mask is non-zero.
func NewFromMask(container *shape.Mask) *Grid {
	if container == nil {
		return New(1, 1)
	}
	container.EnsureSize()
	g := New(container.Width, container.Height)
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			g.free[g.Index(x, y)] = container.Get(x, y) == 0
		}
	}
	g.RecomputeAll()
	return g
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// Len returns Width*Height.
func (g *Grid) Len() int { return len(g.free) }

// Index returns the linear index of (x, y). It does not check bounds.
func (g *Grid) Index(x, y int) int { return y*g.width + x }

// Point returns the coordinates of a linear index.
func (g *Grid) Point(idx int) shape.Point {
	return shape.Point{X: idx % g.width, Y: idx / g.width}
}

func (g *Grid) validIndex(idx int) bool {
	return idx >= 0 && idx < len(g.free)
}

// IsInside reports whether (x, y) lies within [0,Width) x [0,Height).
func (g *Grid) IsInside(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

// IsFree reports whether (x, y) is inside the grid and unoccupied.
func (g *Grid) IsFree(x, y int) bool {
	return g.IsInside(x, y) && g.free[g.Index(x, y)]
}

// IsFreeIndex is IsFree for a linear index.
func (g *Grid) IsFreeIndex(idx int) bool {
	return g.validIndex(idx) && g.free[idx]
}

// FreeCount returns the number of unoccupied cells.
func (g *Grid) FreeCount() int {
	n := 0
	for _, f := range g.free {
		if f {
			n++
		}
	}
	return n
}

// Footprint returns the linear indices the non-zero cells of s would cover
// when the local anchor cell is put on origin, in the row-major order of the
// shape. ok is false when any cell falls outside the grid. Occupancy is not
// consulted.
func (g *Grid) Footprint(s *shape.Mask, anchor, origin shape.Point) (indices []int, ok bool) {
	cells := s.Cells()
	indices = make([]int, 0, len(cells))
	for _, c := range cells {
		abs := origin.Sub(anchor).Add(c)
		if !g.IsInside(abs.X, abs.Y) {
			return nil, false
		}
		indices = append(indices, g.Index(abs.X, abs.Y))
	}
	return indices, true
}

// CanPlace reports whether every non-zero cell of s, with anchor put on
// origin, maps to a free cell inside the grid. A nil shape cannot be placed;
// a shape with no occupied cells trivially can, and Place then touches
// nothing. CanPlace never mutates the grid.
func (g *Grid) CanPlace(s *shape.Mask, anchor, origin shape.Point) bool {
	if s == nil {
		return false
	}
	for _, c := range s.Cells() {
		abs := origin.Sub(anchor).Add(c)
		if !g.IsFree(abs.X, abs.Y) {
			return false
		}
	}
	return true
}

// Place marks the cells covered by s as occupied and returns their linear
// indices. It does not validate: callers must have a true CanPlace result
// for the same arguments on the current state, or use TryPlace. Cells that
// fall outside the grid are skipped.
func (g *Grid) Place(s *shape.Mask, anchor, origin shape.Point) []int {
	touched := make([]int, 0, s.Count())
	for _, c := range s.Cells() {
		abs := origin.Sub(anchor).Add(c)
		if !g.IsInside(abs.X, abs.Y) {
			continue
		}
		idx := g.Index(abs.X, abs.Y)
		g.free[idx] = false
		touched = append(touched, idx)
	}
	g.recompute(touched)
	return touched
}

// TryPlace validates and commits in one call. It returns the touched
// indices and true on success; on failure the grid is unchanged.
func (g *Grid) TryPlace(s *shape.Mask, anchor, origin shape.Point) ([]int, bool) {
	if !g.CanPlace(s, anchor, origin) {
		return nil, false
	}
	return g.Place(s, anchor, origin), true
}

// Free marks each occupied index as free and returns the indices that
// actually changed. Free indices and indices outside the grid are ignored,
// so freeing the same set twice changes nothing the second time.
func (g *Grid) Free(indices []int) []int {
	changed := make([]int, 0, len(indices))
	for _, idx := range indices {
		if !g.validIndex(idx) || g.free[idx] {
			continue
		}
		g.free[idx] = true
		changed = append(changed, idx)
	}
	if len(changed) > 0 {
		g.recompute(changed)
	}
	return changed
}

// FindFit returns the origin for anchor at which s fits, choosing the
// placement whose occupied bounding box starts first in row-major order.
// A shape with no occupied cells has no bounding box and never fits.
func (g *Grid) FindFit(s *shape.Mask, anchor shape.Point) (shape.Point, bool) {
	cells := s.Cells()
	if len(cells) == 0 {
		return shape.Point{}, false
	}

	// bounding box of the occupied cells
	lo, hi := cells[0], cells[0]
	for _, c := range cells[1:] {
		lo.X, lo.Y = min(lo.X, c.X), min(lo.Y, c.Y)
		hi.X, hi.Y = max(hi.X, c.X), max(hi.Y, c.Y)
	}

	for y := 0; y <= g.height-1-(hi.Y-lo.Y); y++ {
		for x := 0; x <= g.width-1-(hi.X-lo.X); x++ {
			// put the box's top-left on (x, y)
			origin := shape.Point{X: x, Y: y}.Sub(lo).Add(anchor)
			if g.CanPlace(s, anchor, origin) {
				return origin, true
			}
		}
	}
	return shape.Point{}, false
}

// FreeMap returns a copy of the occupancy bitmap (true = free).
func (g *Grid) FreeMap() []bool {
	out := make([]bool, len(g.free))
	copy(out, g.free)
	return out
}

// SetFreeMap replaces the occupancy bitmap with a copy of free. It returns
// false, leaving the grid untouched, when the length is not Width*Height.
// The visual state is stale until RecomputeAll is called.
func (g *Grid) SetFreeMap(free []bool) bool {
	if len(free) != len(g.free) {
		return false
	}
	copy(g.free, free)
	return true
}
