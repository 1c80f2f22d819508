package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 4x3 cells of 10x10 with 2 spacing, padding 5 left/right and 4 top/bottom:
// the rectangle is 56 x 42.
func testParams() Params {
	return Fit(4, 3, Vec{X: 10, Y: 10}, Vec{X: 2, Y: 2}, Padding{Left: 5, Right: 5, Top: 4, Bottom: 4})
}

func TestFit(t *testing.T) {
	p := testParams()
	assert.Equal(t, Vec{X: 56, Y: 42}, p.Size)
	assert.Equal(t, Vec{X: 0, Y: 1}, p.Pivot)
	require.NoError(t, p.Validate())
}

func TestMapPointerToCell(t *testing.T) {
	p := testParams()

	tests := []struct {
		name   string
		pos    Vec
		want   Cell
		wantOK bool
	}{
		{"content top-left corner", Vec{X: 5, Y: -4}, Cell{0, 0}, true},
		{"inside first cell", Vec{X: 9, Y: -8}, Cell{0, 0}, true},
		{"spacing belongs to the previous cell", Vec{X: 16.9, Y: -4}, Cell{0, 0}, true},
		{"start of second column", Vec{X: 17, Y: -4}, Cell{1, 0}, true},
		{"last cell", Vec{X: 50, Y: -37}, Cell{3, 2}, true},
		{"right content edge", Vec{X: 51, Y: -4}, Cell{3, 0}, true},
		{"left padding", Vec{X: 4, Y: -10}, Cell{}, false},
		{"top padding", Vec{X: 10, Y: -3}, Cell{}, false},
		{"right padding", Vec{X: 52, Y: -10}, Cell{}, false},
		{"bottom padding", Vec{X: 10, Y: -39}, Cell{}, false},
		{"outside rectangle", Vec{X: 100, Y: 100}, Cell{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MapPointerToCell(tt.pos, p)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapPointerToCell_RejectsPastConfiguredDimensions(t *testing.T) {
	p := testParams()
	p.Columns = 2

	_, ok := MapPointerToCell(Vec{X: 30, Y: -8}, p)
	assert.False(t, ok, "column 2 exists geometrically but not logically")

	c, ok := MapPointerToCell(Vec{X: 20, Y: -8}, p)
	assert.True(t, ok)
	assert.Equal(t, Cell{1, 0}, c)
}

func TestMapPointerToCell_CenteredPivot(t *testing.T) {
	p := testParams()
	p.Pivot = Vec{X: 0.5, Y: 0.5}

	c, ok := MapPointerToCell(Vec{X: -23, Y: 17}, p)
	require.True(t, ok)
	assert.Equal(t, Cell{0, 0}, c)

	c, ok = MapPointerToCell(Vec{X: 0, Y: 0}, p)
	require.True(t, ok)
	assert.Equal(t, Cell{1, 1}, c)
}

func TestMapPointerToCell_InvalidParams(t *testing.T) {
	p := testParams()
	p.CellSize = Vec{}
	_, ok := MapPointerToCell(Vec{X: 5, Y: -4}, p)
	assert.False(t, ok)
	assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
}

func TestMapCellToRect(t *testing.T) {
	p := testParams()

	r, ok := MapCellToRect(0, 0, p)
	require.True(t, ok)
	assert.Equal(t, Rect{Min: Vec{X: 5, Y: -14}, Max: Vec{X: 15, Y: -4}}, r)

	r, ok = MapCellToRect(3, 2, p)
	require.True(t, ok)
	assert.Equal(t, Rect{Min: Vec{X: 41, Y: -38}, Max: Vec{X: 51, Y: -28}}, r)

	_, ok = MapCellToRect(4, 0, p)
	assert.False(t, ok)
	_, ok = MapCellToRect(0, -1, p)
	assert.False(t, ok)
}

func TestMapCellToRect_RoundTrip(t *testing.T) {
	for _, pivot := range []Vec{{0, 1}, {0.5, 0.5}, {1, 0}} {
		p := testParams()
		p.Pivot = pivot
		for row := 0; row < p.Rows; row++ {
			for col := 0; col < p.Columns; col++ {
				r, ok := MapCellToRect(col, row, p)
				require.True(t, ok)
				for _, probe := range []Vec{r.Center(), r.Min, {X: r.Min.X, Y: r.Max.Y}} {
					c, ok := MapPointerToCell(probe, p)
					require.True(t, ok, "pivot %v cell (%d,%d) probe %v", pivot, col, row, probe)
					assert.Equal(t, Cell{Col: col, Row: row}, c)
				}
			}
		}
	}
}

func TestSnap(t *testing.T) {
	p := testParams()

	s, ok := NewSnap(Vec{X: 0, Y: 0}, Vec{X: 0, Y: 0}, 0, 0, p, 0.1, nil)
	require.True(t, ok)
	assert.Equal(t, Vec{X: 10, Y: -9}, s.Target())

	pos, done := s.Update(0.01)
	assert.False(t, done)
	assert.Greater(t, pos.X, 0.0)
	assert.Less(t, pos.X, 10.0)

	pos, done = s.Update(1)
	assert.True(t, done)
	assert.True(t, s.Done())
	assert.Equal(t, s.Target(), pos)

	// held point offsets the final position
	s, ok = NewSnap(Vec{X: 100, Y: 100}, Vec{X: 105, Y: 95}, 1, 0, p, 0, nil)
	require.True(t, ok)
	assert.Equal(t, Vec{X: 100 + (22 - 105), Y: 100 + (-9 - 95)}, s.Target())

	_, ok = NewSnap(Vec{}, Vec{}, 9, 9, p, 0, nil)
	assert.False(t, ok)
}
