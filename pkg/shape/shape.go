// Package shape models the 2D footprint of an inventory item or the
// disabled-cell pattern of a container.
//
// A Mask is a bounded-integer grid of width x height cells stored row-major
// (index = y*width + x). Boolean footprints are the MaxValue == 1 case.
package shape

import (
	"errors"
	"strings"
)

// MaxSide bounds the width and height of a mask. Larger dimensions are
// rejected by Parse and UnmarshalJSON and clamped by EnsureSize.
const MaxSide = 256

var (
	// ErrNotBoolean is returned by the bulk operations on masks whose
	// MaxValue is greater than 1.
	ErrNotBoolean = errors.New("bulk operation requires a boolean mask")
	// ErrInvalidMask is returned when decoded mask data is inconsistent.
	ErrInvalidMask = errors.New("invalid shape mask")
)

// Point is a cell coordinate with origin at the top-left corner.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p + o.
func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }

// Sub returns p - o.
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// Mask is a width x height footprint. Width, Height and MaxValue may be
// edited directly; the backing storage is brought in line by EnsureSize,
// which Get and Set call before touching a cell.
type Mask struct {
	ID       string
	Name     string
	Width    int
	Height   int
	MaxValue int

	cells []int
}

// New creates an empty boolean mask.
func New(width, height int) *Mask {
	return NewBounded(width, height, 1)
}

// NewBounded creates an empty mask whose cells hold values in [0, maxValue].
func NewBounded(width, height, maxValue int) *Mask {
	m := &Mask{Width: width, Height: height, MaxValue: maxValue}
	m.EnsureSize()
	return m
}

// FromPoints creates the smallest boolean mask covering pts, each set to 1.
// Negative coordinates are ignored.
func FromPoints(pts ...Point) *Mask {
	w, h := 1, 1
	for _, p := range pts {
		if p.X+1 > w {
			w = p.X + 1
		}
		if p.Y+1 > h {
			h = p.Y + 1
		}
	}
	m := New(w, h)
	for _, p := range pts {
		m.Set(p.X, p.Y, 1)
	}
	return m
}

func (m *Mask) size() int {
	return clamp(m.Width, 1, MaxSide) * clamp(m.Height, 1, MaxSide)
}

// EnsureSize normalizes the dimensions (1 to MaxSide per side, MaxValue at
// least 1) and grows or shrinks the storage to exactly Width*Height entries. Existing
// entries keep their flat position; new entries are zero. Calling it again
// without changing the dimensions is a no-op.
func (m *Mask) EnsureSize() {
	if m.Width > MaxSide || m.Height > MaxSide {
		// flat positions of an oversized mask do not survive the clamp
		m.cells = nil
	}
	m.Width = clamp(m.Width, 1, MaxSide)
	m.Height = clamp(m.Height, 1, MaxSide)
	m.MaxValue = max(1, m.MaxValue)

	target := m.size()
	switch {
	case len(m.cells) < target:
		m.cells = append(m.cells, make([]int, target-len(m.cells))...)
	case len(m.cells) > target:
		m.cells = m.cells[:target]
	}
	for i, v := range m.cells {
		m.cells[i] = clamp(v, 0, m.MaxValue)
	}
}

func (m *Mask) inside(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// Get returns the value at local (x, y). A nil mask or out-of-range
// coordinates yield 0.
func (m *Mask) Get(x, y int) int {
	if m == nil {
		return 0
	}
	m.EnsureSize()
	if !m.inside(x, y) {
		return 0
	}
	return m.cells[y*m.Width+x]
}

// Set stores v at local (x, y), clamped into [0, MaxValue]. Out-of-range
// coordinates are ignored.
func (m *Mask) Set(x, y, v int) {
	m.EnsureSize()
	if !m.inside(x, y) {
		return
	}
	m.cells[y*m.Width+x] = clamp(v, 0, m.MaxValue)
}

// SetBool stores 1 for true and 0 for false.
func (m *Mask) SetBool(x, y int, v bool) {
	if v {
		m.Set(x, y, 1)
		return
	}
	m.Set(x, y, 0)
}

// Resize changes the dimensions, keeping every value whose (x, y) lies in
// both the old and the new rectangle. Cells outside the old rectangle are
// zero.
func (m *Mask) Resize(width, height int) {
	m.EnsureSize()
	width = clamp(width, 1, MaxSide)
	height = clamp(height, 1, MaxSide)
	if width == m.Width && height == m.Height {
		return
	}

	next := make([]int, width*height)
	for y := 0; y < min(height, m.Height); y++ {
		for x := 0; x < min(width, m.Width); x++ {
			next[y*width+x] = m.cells[y*m.Width+x]
		}
	}
	m.Width, m.Height, m.cells = width, height, next
}

// IsBoolean reports whether the mask only holds 0 and 1.
func (m *Mask) IsBoolean() bool {
	return m != nil && max(1, m.MaxValue) == 1
}

// Clear sets every cell of a boolean mask to 0.
func (m *Mask) Clear() error {
	return m.fill(func(int) int { return 0 })
}

// Fill sets every cell of a boolean mask to 1.
func (m *Mask) Fill() error {
	return m.fill(func(int) int { return 1 })
}

// Invert flips every cell of a boolean mask.
func (m *Mask) Invert() error {
	return m.fill(func(v int) int { return 1 - v })
}

func (m *Mask) fill(fn func(int) int) error {
	if !m.IsBoolean() {
		return ErrNotBoolean
	}
	m.EnsureSize()
	for i, v := range m.cells {
		m.cells[i] = fn(v)
	}
	return nil
}

// Cells returns the local coordinates of every non-zero cell in row-major
// order.
func (m *Mask) Cells() []Point {
	if m == nil {
		return nil
	}
	m.EnsureSize()
	out := make([]Point, 0, len(m.cells))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.cells[y*m.Width+x] != 0 {
				out = append(out, Point{X: x, Y: y})
			}
		}
	}
	return out
}

// Count returns the number of non-zero cells.
func (m *Mask) Count() int {
	if m == nil {
		return 0
	}
	m.EnsureSize()
	n := 0
	for _, v := range m.cells {
		if v != 0 {
			n++
		}
	}
	return n
}

// IsEmpty reports whether the mask is nil or has no non-zero cell.
func (m *Mask) IsEmpty() bool {
	return m.Count() == 0
}

// Values returns a copy of the row-major cell values.
func (m *Mask) Values() []int {
	if m == nil {
		return nil
	}
	m.EnsureSize()
	out := make([]int, len(m.cells))
	copy(out, m.cells)
	return out
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	if m == nil {
		return nil
	}
	c := *m
	c.cells = m.Values()
	return &c
}

// String renders the mask as rows of '.' and '#' for boolean masks or
// digits for bounded masks.
func (m *Mask) String() string {
	if m == nil {
		return ""
	}
	return strings.Join(m.Pattern(), "\n")
}

// Pattern renders the mask in the row format accepted by Parse.
func (m *Mask) Pattern() []string {
	m.EnsureSize()
	rows := make([]string, m.Height)
	var b strings.Builder
	for y := 0; y < m.Height; y++ {
		b.Reset()
		for x := 0; x < m.Width; x++ {
			v := m.cells[y*m.Width+x]
			switch {
			case v == 0:
				b.WriteByte('.')
			case m.IsBoolean():
				b.WriteByte('#')
			default:
				b.WriteByte(byte('0' + min(v, 9)))
			}
		}
		rows[y] = b.String()
	}
	return rows
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
