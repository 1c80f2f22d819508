package shape

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Parse builds a mask from rows of characters. '.', ' ' and '0' are empty
// cells, '#', 'X' and 'x' are 1, and the digits 1-9 are bounded values.
// Rows shorter than the longest row are padded with empty cells. MaxValue
// is the largest digit seen, or 1.
func Parse(rows []string) (*Mask, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidMask)
	}

	width := 0
	for _, row := range rows {
		width = max(width, utf8.RuneCountInString(row))
	}
	if width == 0 {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidMask)
	}
	if width > MaxSide || len(rows) > MaxSide {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d per side", ErrInvalidMask, width, len(rows), MaxSide)
	}

	values := make([]int, width*len(rows))
	maxValue := 1
	for y, row := range rows {
		x := 0
		for _, r := range row {
			var v int
			switch {
			case r == '.' || r == ' ' || r == '0':
				v = 0
			case r == '#' || r == 'X' || r == 'x':
				v = 1
			case r >= '1' && r <= '9':
				v = int(r - '0')
			default:
				return nil, fmt.Errorf("%w: unexpected %q at row %d col %d", ErrInvalidMask, r, y, x)
			}
			values[y*width+x] = v
			maxValue = max(maxValue, v)
			x++
		}
	}

	return &Mask{Width: width, Height: len(rows), MaxValue: maxValue, cells: values}, nil
}

// MustParse is Parse for fixed patterns in tests and tables; it panics on
// malformed input.
func MustParse(rows ...string) *Mask {
	m, err := Parse(rows)
	if err != nil {
		panic(err)
	}
	return m
}

// maskJSON is the file and wire representation. Either Cells (with Width and
// Height) or Pattern must be set.
type maskJSON struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name,omitempty"`
	Width    int      `json:"width,omitempty"`
	Height   int      `json:"height,omitempty"`
	MaxValue int      `json:"max_value,omitempty"`
	Cells    []int    `json:"cells,omitempty"`
	Pattern  []string `json:"pattern,omitempty"`
}

// MarshalJSON encodes the mask with an explicit cell array.
func (m *Mask) MarshalJSON() ([]byte, error) {
	return json.Marshal(maskJSON{
		ID:       m.ID,
		Name:     m.Name,
		Width:    max(1, m.Width),
		Height:   max(1, m.Height),
		MaxValue: max(1, m.MaxValue),
		Cells:    m.Values(),
	})
}

// UnmarshalJSON accepts either the cell array form or the pattern form.
func (m *Mask) UnmarshalJSON(data []byte) error {
	var raw maskJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if len(raw.Pattern) > 0 {
		parsed, err := Parse(raw.Pattern)
		if err != nil {
			return err
		}
		if raw.MaxValue > parsed.MaxValue {
			parsed.MaxValue = raw.MaxValue
		}
		parsed.ID, parsed.Name = raw.ID, raw.Name
		*m = *parsed
		return nil
	}

	if raw.Width < 1 || raw.Height < 1 {
		return fmt.Errorf("%w: width and height must be at least 1", ErrInvalidMask)
	}
	if raw.Width > MaxSide || raw.Height > MaxSide {
		return fmt.Errorf("%w: %dx%d exceeds %d per side", ErrInvalidMask, raw.Width, raw.Height, MaxSide)
	}
	if len(raw.Cells) != raw.Width*raw.Height {
		return fmt.Errorf("%w: %d cells for %dx%d", ErrInvalidMask, len(raw.Cells), raw.Width, raw.Height)
	}
	maxValue := max(1, raw.MaxValue)
	for i, v := range raw.Cells {
		if v < 0 || v > maxValue {
			return fmt.Errorf("%w: cell %d value %d outside [0,%d]", ErrInvalidMask, i, v, maxValue)
		}
	}

	*m = Mask{
		ID:       raw.ID,
		Name:     raw.Name,
		Width:    raw.Width,
		Height:   raw.Height,
		MaxValue: maxValue,
		cells:    append([]int(nil), raw.Cells...),
	}
	return nil
}
