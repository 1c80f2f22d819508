package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/google/uuid"

	"github.com/jwebster45206/inventory-engine/pkg/grid"
	"github.com/jwebster45206/inventory-engine/pkg/layout"
	"github.com/jwebster45206/inventory-engine/pkg/persist"
	"github.com/jwebster45206/inventory-engine/pkg/placement"
	"github.com/jwebster45206/inventory-engine/pkg/shape"
)

// Terminal cells are roughly twice as tall as they are wide, so each grid
// cell is drawn two columns wide with one blank column between cells.
var (
	cellSize    = layout.Vec{X: 2, Y: 1}
	cellSpacing = layout.Vec{X: 1, Y: 0}
)

var errNoShapes = errors.New("no shapes loaded")

// board is the local inventory the console edits: one grid, the items in it
// and a cursor marking where the selected shape's anchor would land.
type board struct {
	id      uuid.UUID
	grid    *grid.Grid
	engine  *placement.Engine
	items   []*placement.Item
	shapes  []*shape.Mask
	catalog persist.Catalog

	selected int
	cursor   shape.Point
	params   layout.Params
}

func newBoard(width, height int, shapes []*shape.Mask, engine *placement.Engine) *board {
	b := &board{
		id:      uuid.New(),
		engine:  engine,
		shapes:  shapes,
		catalog: persist.NewCatalog(shapes...),
	}
	b.setGrid(grid.New(width, height))
	return b
}

func (b *board) setGrid(g *grid.Grid) {
	b.grid = g
	b.params = layout.Fit(g.Width(), g.Height(), cellSize, cellSpacing, layout.Padding{})
	b.cursor.X = min(max(b.cursor.X, 0), g.Width()-1)
	b.cursor.Y = min(max(b.cursor.Y, 0), g.Height()-1)
}

// Selected returns the current shape, or nil when none are loaded.
func (b *board) Selected() *shape.Mask {
	if len(b.shapes) == 0 {
		return nil
	}
	return b.shapes[b.selected]
}

// CycleShape moves the selection by delta, wrapping around.
func (b *board) CycleShape(delta int) {
	n := len(b.shapes)
	if n == 0 {
		return
	}
	b.selected = ((b.selected+delta)%n + n) % n
}

// MoveCursor shifts the cursor, clamped to the grid.
func (b *board) MoveCursor(dx, dy int) {
	b.cursor.X = min(max(b.cursor.X+dx, 0), b.grid.Width()-1)
	b.cursor.Y = min(max(b.cursor.Y+dy, 0), b.grid.Height()-1)
}

// anchorOf picks the first occupied cell so the cursor always sits on a
// piece of the shape.
func anchorOf(m *shape.Mask) shape.Point {
	if cells := m.Cells(); len(cells) > 0 {
		return cells[0]
	}
	return shape.Point{}
}

// Preview returns the cells the selected shape would cover at the cursor
// and whether it fits there. Cells outside the grid are dropped.
func (b *board) Preview() ([]int, bool) {
	m := b.Selected()
	if m == nil {
		return nil, false
	}
	anchor := anchorOf(m)
	fits := b.grid.CanPlace(m, anchor, b.cursor)

	var cells []int
	topLeft := b.cursor.Sub(anchor)
	for _, c := range m.Cells() {
		p := topLeft.Add(c)
		if b.grid.IsInside(p.X, p.Y) {
			cells = append(cells, b.grid.Index(p.X, p.Y))
		}
	}
	return cells, fits
}

// PlaceAtCursor commits the selected shape with its anchor on the cursor.
func (b *board) PlaceAtCursor() (*placement.Item, error) {
	m := b.Selected()
	if m == nil {
		return nil, errNoShapes
	}
	it := placement.NewItem(m, anchorOf(m))
	if err := b.engine.TryPlace(it, b.grid, it.Anchor, b.cursor); err != nil {
		return nil, err
	}
	b.items = append(b.items, it)
	return it, nil
}

// AutoPlace puts the selected shape in the first free spot and moves the
// cursor onto it.
func (b *board) AutoPlace() (*placement.Item, error) {
	m := b.Selected()
	if m == nil {
		return nil, errNoShapes
	}
	it := placement.NewItem(m, anchorOf(m))
	at, err := b.engine.AutoPlace(it, b.grid)
	if err != nil {
		return nil, err
	}
	b.items = append(b.items, it)
	b.cursor = at
	return it, nil
}

// ItemAt returns the item covering p, if any.
func (b *board) ItemAt(p shape.Point) *placement.Item {
	if !b.grid.IsInside(p.X, p.Y) {
		return nil
	}
	idx := b.grid.Index(p.X, p.Y)
	for _, it := range b.items {
		if slices.Contains(it.Indices(), idx) {
			return it
		}
	}
	return nil
}

// ReleaseAtCursor removes the item under the cursor and returns it with the
// freed cells. It returns nil when the cursor is on a free cell.
func (b *board) ReleaseAtCursor() (*placement.Item, []int) {
	it := b.ItemAt(b.cursor)
	if it == nil {
		return nil, nil
	}
	freed := b.engine.Release(it)
	b.items = slices.DeleteFunc(b.items, func(o *placement.Item) bool { return o == it })
	return it, freed
}

// ItemIndex maps each occupied cell to the position of its item in items.
func (b *board) ItemIndex() map[int]int {
	out := make(map[int]int)
	for n, it := range b.items {
		for _, idx := range it.Indices() {
			out[idx] = n
		}
	}
	return out
}

// Snapshot captures the board.
func (b *board) Snapshot() persist.Snapshot {
	return persist.Capture(b.id, b.grid, b.items)
}

// SnapshotJSON is the indented snapshot, as written by Save.
func (b *board) SnapshotJSON() ([]byte, error) {
	return json.MarshalIndent(b.Snapshot(), "", "  ")
}

// Save writes the snapshot to path.
func (b *board) Save(path string) error {
	data, err := b.SnapshotJSON()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load replaces the board with the snapshot at path. The board is left
// untouched on error.
func (b *board) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snap persist.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	g, items, err := persist.Apply(snap, b.catalog, b.engine)
	if err != nil {
		return err
	}
	b.id = snap.ID
	b.items = items
	b.setGrid(g)
	return nil
}

// CellAt converts a mouse position to a grid cell. boardX and boardY are the
// terminal coordinates of the board's top-left corner.
func (b *board) CellAt(mouseX, mouseY, boardX, boardY int) (shape.Point, bool) {
	pos := layout.Vec{
		X: float64(mouseX-boardX) + 0.5,
		Y: -(float64(mouseY-boardY) + 0.5),
	}
	c, ok := layout.MapPointerToCell(pos, b.params)
	if !ok {
		return shape.Point{}, false
	}
	return shape.Point{X: c.Col, Y: c.Row}, true
}

// CursorPos is the center of the cursor cell in layout space.
func (b *board) CursorPos() layout.Vec {
	r, _ := layout.MapCellToRect(b.cursor.X, b.cursor.Y, b.params)
	return r.Center()
}
