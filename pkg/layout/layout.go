// Package layout maps between pointer positions and grid cells for a
// uniformly spaced cell layout.
//
// Positions are in the layout rectangle's local space: the origin is the
// rectangle's pivot, x grows to the right and y grows upwards. Cells are
// numbered from the top-left corner of the padded content area. Nothing here
// depends on rendered cell geometry, so mapping works on grids that have not
// been drawn yet.
package layout

import (
	"errors"
	"math"
)

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid layout parameters")

// Vec is a 2D vector in layout units.
type Vec struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Padding is the inset between the rectangle edge and the first cell.
type Padding struct {
	Left   float64 `json:"left" yaml:"left"`
	Right  float64 `json:"right" yaml:"right"`
	Top    float64 `json:"top" yaml:"top"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
}

// Params describes the layout rectangle and its cell arrangement.
type Params struct {
	Pivot    Vec     `json:"pivot" yaml:"pivot"` // normalized, (0,0) bottom-left, (1,1) top-right
	Size     Vec     `json:"size" yaml:"size"`
	CellSize Vec     `json:"cell_size" yaml:"cell_size"`
	Spacing  Vec     `json:"spacing" yaml:"spacing"`
	Padding  Padding `json:"padding" yaml:"padding"`
	Columns  int     `json:"columns" yaml:"columns"`
	Rows     int     `json:"rows" yaml:"rows"`
}

// Fit returns params whose rectangle exactly wraps columns x rows cells,
// with the pivot at the top-left corner.
func Fit(columns, rows int, cellSize, spacing Vec, pad Padding) Params {
	return Params{
		Pivot:    Vec{X: 0, Y: 1},
		Size:     ContentSize(columns, rows, cellSize, spacing, pad),
		CellSize: cellSize,
		Spacing:  spacing,
		Padding:  pad,
		Columns:  columns,
		Rows:     rows,
	}
}

// ContentSize is the rectangle size needed for columns x rows cells.
func ContentSize(columns, rows int, cellSize, spacing Vec, pad Padding) Vec {
	span := func(n int, cell, gap float64) float64 {
		if n <= 0 {
			return 0
		}
		return float64(n)*cell + float64(n-1)*gap
	}
	return Vec{
		X: pad.Left + pad.Right + span(columns, cellSize.X, spacing.X),
		Y: pad.Top + pad.Bottom + span(rows, cellSize.Y, spacing.Y),
	}
}

// Validate checks that the cell pitch and dimensions are positive.
func (p Params) Validate() error {
	switch {
	case p.Columns < 1 || p.Rows < 1:
		return errors.Join(ErrInvalidParams, errors.New("columns and rows must be at least 1"))
	case p.CellSize.X <= 0 || p.CellSize.Y <= 0:
		return errors.Join(ErrInvalidParams, errors.New("cell size must be positive"))
	case p.Spacing.X < 0 || p.Spacing.Y < 0:
		return errors.Join(ErrInvalidParams, errors.New("spacing must not be negative"))
	case p.Size.X <= 0 || p.Size.Y <= 0:
		return errors.Join(ErrInvalidParams, errors.New("size must be positive"))
	}
	return nil
}

// Cell is a zero-based column and row.
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Rect is an axis-aligned rectangle in layout space; Min is the bottom-left
// corner.
type Rect struct {
	Min Vec `json:"min"`
	Max Vec `json:"max"`
}

// Center returns the midpoint of r.
func (r Rect) Center() Vec {
	return Vec{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

// Contains reports whether v lies in r, edges included.
func (r Rect) Contains(v Vec) bool {
	return v.X >= r.Min.X && v.X <= r.Max.X && v.Y >= r.Min.Y && v.Y <= r.Max.Y
}

// leftEdge and topEdge are the rectangle's edges relative to the pivot.
func (p Params) leftEdge() float64 { return -p.Size.X * p.Pivot.X }
func (p Params) topEdge() float64  { return p.Size.Y * (1 - p.Pivot.Y) }

// MapPointerToCell returns the cell under pos. ok is false when pos lies in
// the padding, outside the rectangle, or past the last column or row.
// Positions in the spacing after a cell map to that cell.
func MapPointerToCell(pos Vec, p Params) (Cell, bool) {
	if p.Validate() != nil {
		return Cell{}, false
	}

	xFromLeft := pos.X - p.leftEdge() - p.Padding.Left
	yFromTop := p.topEdge() - pos.Y - p.Padding.Top

	contentW := p.Size.X - p.Padding.Left - p.Padding.Right
	contentH := p.Size.Y - p.Padding.Top - p.Padding.Bottom
	if xFromLeft < 0 || yFromTop < 0 || xFromLeft > contentW || yFromTop > contentH {
		return Cell{}, false
	}

	col := int(math.Floor(xFromLeft / (p.CellSize.X + p.Spacing.X)))
	row := int(math.Floor(yFromTop / (p.CellSize.Y + p.Spacing.Y)))
	if col < 0 || row < 0 || col >= p.Columns || row >= p.Rows {
		return Cell{}, false
	}
	return Cell{Col: col, Row: row}, true
}

// MapCellToRect returns the rectangle covered by a cell, excluding spacing.
func MapCellToRect(col, row int, p Params) (Rect, bool) {
	if p.Validate() != nil || col < 0 || row < 0 || col >= p.Columns || row >= p.Rows {
		return Rect{}, false
	}

	left := p.leftEdge() + p.Padding.Left + float64(col)*(p.CellSize.X+p.Spacing.X)
	top := p.topEdge() - p.Padding.Top - float64(row)*(p.CellSize.Y+p.Spacing.Y)
	return Rect{
		Min: Vec{X: left, Y: top - p.CellSize.Y},
		Max: Vec{X: left + p.CellSize.X, Y: top},
	}, true
}
