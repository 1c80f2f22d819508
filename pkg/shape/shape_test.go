package shape

import (
	"encoding/json"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMask_GetSet(t *testing.T) {
	m := New(3, 2)
	m.Set(1, 1, 1)

	assert.Equal(t, 1, m.Get(1, 1))
	assert.Equal(t, 0, m.Get(0, 0))

	tests := []struct {
		name string
		x, y int
	}{
		{"negative x", -1, 0},
		{"negative y", 0, -1},
		{"x past width", 3, 0},
		{"y past height", 0, 2},
		{"x past width aliasing next row", 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 0, m.Get(tt.x, tt.y))
			m.Set(tt.x, tt.y, 1)
			assert.Equal(t, 1, m.Count(), "out-of-range Set must not write")
		})
	}
}

func TestMask_GetOnNil(t *testing.T) {
	var m *Mask
	assert.Equal(t, 0, m.Get(0, 0))
	assert.True(t, m.IsEmpty())
	assert.Nil(t, m.Cells())
}

func TestMask_SetClamps(t *testing.T) {
	b := NewBounded(2, 2, 3)
	b.Set(0, 0, 7)
	b.Set(1, 0, -2)
	assert.Equal(t, 3, b.Get(0, 0))
	assert.Equal(t, 0, b.Get(1, 0))

	bl := New(1, 1)
	bl.Set(0, 0, 5)
	assert.Equal(t, 1, bl.Get(0, 0))
	bl.SetBool(0, 0, false)
	assert.Equal(t, 0, bl.Get(0, 0))
}

func TestMask_EnsureSize(t *testing.T) {
	m := New(2, 2)
	m.Set(0, 0, 1)
	m.Set(1, 1, 1)

	m.EnsureSize()
	m.EnsureSize()
	assert.Equal(t, []int{1, 0, 0, 1}, m.Values(), "repeated EnsureSize is a no-op")

	// Growing keeps the flat prefix and zero-fills the tail.
	m.Height = 3
	m.EnsureSize()
	assert.Equal(t, []int{1, 0, 0, 1, 0, 0}, m.Values())

	// Shrinking truncates the tail.
	m.Width, m.Height = 1, 2
	m.EnsureSize()
	assert.Equal(t, []int{1, 0}, m.Values())

	// Degenerate dimensions normalize to 1.
	z := &Mask{}
	z.EnsureSize()
	assert.Equal(t, 1, z.Width)
	assert.Equal(t, 1, z.Height)
	assert.Equal(t, 1, z.MaxValue)
	assert.Len(t, z.Values(), 1)

	// Oversized dimensions clamp so every in-bounds Get has a backing cell.
	big := &Mask{Width: math.MaxInt, Height: math.MaxInt, cells: []int{1}}
	big.EnsureSize()
	assert.Equal(t, MaxSide, big.Width)
	assert.Equal(t, MaxSide, big.Height)
	assert.Len(t, big.Values(), MaxSide*MaxSide)
	assert.Equal(t, 0, big.Get(MaxSide-1, MaxSide-1))
	assert.Equal(t, 0, big.Count())
}

func TestMask_Resize(t *testing.T) {
	m := MustParse(
		"#.#",
		".#.",
	)

	m.Resize(2, 3)
	assert.Equal(t, []string{
		"#.",
		".#",
		"..",
	}, m.Pattern())

	m.Resize(4, 1)
	assert.Equal(t, []string{"#..."}, m.Pattern())
}

func TestMask_BulkOperations(t *testing.T) {
	m := MustParse("#.", "..")

	require.NoError(t, m.Invert())
	assert.Equal(t, []string{".#", "##"}, m.Pattern())

	require.NoError(t, m.Fill())
	assert.Equal(t, 4, m.Count())

	require.NoError(t, m.Clear())
	assert.True(t, m.IsEmpty())

	bounded := NewBounded(2, 2, 3)
	for _, op := range []func() error{bounded.Clear, bounded.Fill, bounded.Invert} {
		assert.True(t, errors.Is(op(), ErrNotBoolean))
	}
}

func TestMask_Cells(t *testing.T) {
	m := MustParse(
		"##",
		"#.",
	)
	assert.Equal(t, []Point{{0, 0}, {1, 0}, {0, 1}}, m.Cells())
	assert.Equal(t, 3, m.Count())
}

func TestFromPoints(t *testing.T) {
	m := FromPoints(Point{0, 0}, Point{2, 1})
	assert.Equal(t, 3, m.Width)
	assert.Equal(t, 2, m.Height)
	assert.Equal(t, []string{"#..", "..#"}, m.Pattern())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		rows     []string
		want     []int
		width    int
		maxValue int
		wantErr  bool
	}{
		{
			name:     "boolean pattern",
			rows:     []string{"X.", "xX"},
			want:     []int{1, 0, 1, 1},
			width:    2,
			maxValue: 1,
		},
		{
			name:     "bounded digits",
			rows:     []string{"3.", "12"},
			want:     []int{3, 0, 1, 2},
			width:    2,
			maxValue: 3,
		},
		{
			name:     "ragged rows pad with empty cells",
			rows:     []string{"###", "#"},
			want:     []int{1, 1, 1, 1, 0, 0},
			width:    3,
			maxValue: 1,
		},
		{name: "no rows", rows: nil, wantErr: true},
		{name: "empty rows", rows: []string{"", ""}, wantErr: true},
		{name: "unknown rune", rows: []string{"#?"}, wantErr: true},
		{name: "row wider than max side", rows: []string{strings.Repeat("#", MaxSide+1)}, wantErr: true},
		{name: "more rows than max side", rows: slices.Repeat([]string{"#"}, MaxSide+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.rows)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMask)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Values())
			assert.Equal(t, tt.width, m.Width)
			assert.Equal(t, tt.maxValue, m.MaxValue)
		})
	}
}

func TestMask_JSON(t *testing.T) {
	t.Run("pattern form", func(t *testing.T) {
		var m Mask
		err := json.Unmarshal([]byte(`{"id":"l_tromino","pattern":["#.","##"]}`), &m)
		require.NoError(t, err)
		assert.Equal(t, "l_tromino", m.ID)
		assert.Equal(t, []Point{{0, 0}, {0, 1}, {1, 1}}, m.Cells())
	})

	t.Run("cell form", func(t *testing.T) {
		var m Mask
		err := json.Unmarshal([]byte(`{"id":"bar","width":3,"height":1,"max_value":2,"cells":[2,1,0]}`), &m)
		require.NoError(t, err)
		assert.Equal(t, 2, m.Get(0, 0))
		assert.Equal(t, 2, m.MaxValue)

		out, err := json.Marshal(&m)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"bar","width":3,"height":1,"max_value":2,"cells":[2,1,0]}`, string(out))
	})

	invalid := map[string]string{
		"cell count mismatch": `{"width":2,"height":2,"cells":[1,0,1]}`,
		"value above max":     `{"width":1,"height":1,"cells":[2]}`,
		"zero width":          `{"width":0,"height":1,"cells":[]}`,
		"bad pattern":         `{"pattern":["#!"]}`,
		"overflowing area":    `{"width":4294967296,"height":4294967296,"cells":[]}`,
		"width above max":     `{"width":257,"height":1,"cells":[]}`,
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			var m Mask
			assert.ErrorIs(t, json.Unmarshal([]byte(body), &m), ErrInvalidMask)
		})
	}
}

func TestMask_DisplayName(t *testing.T) {
	assert.Equal(t, "Rusted Sword", (&Mask{ID: "rusted_sword"}).DisplayName())
	assert.Equal(t, "Fine Axe", (&Mask{ID: "fine-axe"}).DisplayName())
	assert.Equal(t, "Custom", (&Mask{ID: "x", Name: "Custom"}).DisplayName())
}

func TestMask_Clone(t *testing.T) {
	m := MustParse("#.")
	c := m.Clone()
	c.Set(1, 0, 1)
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, 2, c.Count())
}
