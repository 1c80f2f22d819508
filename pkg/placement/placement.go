// Package placement attaches items to grids. It validates a footprint
// against a grid, commits it, and remembers which cells the item holds so it
// can release them later.
//
// An item is either Unplaced (no record, or an unlocked one) or Placed (a
// locked record). Moving an item between grids is Release followed by
// TryPlace on the target; the engine never relocates implicitly.
package placement

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/jwebster45206/inventory-engine/pkg/grid"
	"github.com/jwebster45206/inventory-engine/pkg/shape"
)

var (
	// ErrCannotPlace is returned when the footprint is out of bounds or
	// overlaps an occupied cell.
	ErrCannotPlace = errors.New("item does not fit at the requested position")
	// ErrEmptyShape is returned by TryPlace and AutoPlace for an item whose
	// shape is nil or has no occupied cells. Such an item would hold no cells.
	ErrEmptyShape = errors.New("item shape has no occupied cells")
	// ErrAlreadyPlaced is returned by TryPlace and AutoPlace for an item that
	// still holds a locked record.
	ErrAlreadyPlaced = errors.New("item is already placed")
	// ErrNoSpace is returned by AutoPlace when no origin fits.
	ErrNoSpace = errors.New("no space available for item")
	// ErrRecordMismatch is returned by Restore when the recorded cells are
	// not occupied in the grid or do not match the item's footprint size.
	ErrRecordMismatch = errors.New("placement record does not match grid")
)

// Record describes where a placed item lives.
type Record struct {
	Grid    *grid.Grid
	Indices []int
	Origin  shape.Point
	Locked  bool
}

// Item is anything the engine can place: a footprint plus the cell held
// while dragging. Payload is opaque data owned by the caller.
type Item struct {
	ID      uuid.UUID
	Shape   *shape.Mask
	Anchor  shape.Point
	Payload json.RawMessage

	record *Record
}

// NewItem creates an unplaced item with a fresh ID.
func NewItem(s *shape.Mask, anchor shape.Point) *Item {
	return &Item{ID: uuid.New(), Shape: s, Anchor: anchor}
}

// Record returns the current placement record, or nil when the item has
// never been placed or was released.
func (it *Item) Record() *Record { return it.record }

// IsPlaced reports whether the item holds a locked record.
func (it *Item) IsPlaced() bool {
	return it.record != nil && it.record.Locked
}

// Indices returns a copy of the cells the item occupies, or nil.
func (it *Item) Indices() []int {
	if !it.IsPlaced() {
		return nil
	}
	return slices.Clone(it.record.Indices)
}

// Event identifies a placement notification.
type Event int

const (
	// EventPlaced follows a successful TryPlace, AutoPlace or Restore.
	EventPlaced Event = iota
	// EventReleased follows a Release that freed a locked record.
	EventReleased
)

func (e Event) String() string {
	switch e {
	case EventPlaced:
		return "placed"
	case EventReleased:
		return "released"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Observer receives notifications after the grid was mutated. indices are
// the touched cells for EventPlaced and the freed cells for EventReleased.
type Observer func(ev Event, it *Item, indices []int)

// Engine places and releases items. The zero value is ready to use.
type Engine struct {
	observers []Observer
}

// NewEngine creates an engine notifying the given observers.
func NewEngine(observers ...Observer) *Engine {
	e := &Engine{}
	for _, o := range observers {
		e.Observe(o)
	}
	return e
}

// Observe registers an observer. nil is ignored.
func (e *Engine) Observe(o Observer) {
	if o != nil {
		e.observers = append(e.observers, o)
	}
}

func (e *Engine) notify(ev Event, it *Item, indices []int) {
	for _, o := range e.observers {
		o(ev, it, indices)
	}
}

// TryPlace puts the item's anchor cell on origin in g. The item's Anchor is
// updated to anchor. On failure the item and the grid are unchanged.
func (e *Engine) TryPlace(it *Item, g *grid.Grid, anchor, origin shape.Point) error {
	if it.IsPlaced() {
		return ErrAlreadyPlaced
	}
	if it.Shape.IsEmpty() {
		return ErrEmptyShape
	}
	touched, ok := g.TryPlace(it.Shape, anchor, origin)
	if !ok {
		return fmt.Errorf("%w: origin (%d,%d)", ErrCannotPlace, origin.X, origin.Y)
	}
	it.Anchor = anchor
	it.record = &Record{Grid: g, Indices: touched, Origin: origin, Locked: true}
	e.notify(EventPlaced, it, touched)
	return nil
}

// AutoPlace places the item at the first origin in g where it fits, keeping
// its current Anchor. It returns the chosen origin.
func (e *Engine) AutoPlace(it *Item, g *grid.Grid) (shape.Point, error) {
	if it.IsPlaced() {
		return shape.Point{}, ErrAlreadyPlaced
	}
	if it.Shape.IsEmpty() {
		return shape.Point{}, ErrEmptyShape
	}
	origin, ok := g.FindFit(it.Shape, it.Anchor)
	if !ok {
		return shape.Point{}, ErrNoSpace
	}
	if err := e.TryPlace(it, g, it.Anchor, origin); err != nil {
		return shape.Point{}, err
	}
	return origin, nil
}

// Release frees the cells held by a placed item and clears its record. It
// returns the cells that changed; it is a no-op for unplaced items.
func (e *Engine) Release(it *Item) []int {
	if !it.IsPlaced() {
		it.record = nil
		return nil
	}
	rec := it.record
	it.record = nil
	changed := rec.Grid.Free(rec.Indices)
	e.notify(EventReleased, it, changed)
	return changed
}

// Restore re-attaches a record to an item after its grid was loaded from a
// snapshot. The indices must already be occupied in g and must be the
// footprint of the item's shape at origin.
func (e *Engine) Restore(it *Item, g *grid.Grid, origin shape.Point, indices []int) error {
	if it.IsPlaced() {
		return ErrAlreadyPlaced
	}
	want, ok := g.Footprint(it.Shape, it.Anchor, origin)
	if !ok || !slices.Equal(want, indices) {
		return fmt.Errorf("%w: item %s", ErrRecordMismatch, it.ID)
	}
	for _, idx := range indices {
		if g.IsFreeIndex(idx) {
			return fmt.Errorf("%w: cell %d is free", ErrRecordMismatch, idx)
		}
	}
	it.record = &Record{Grid: g, Indices: slices.Clone(indices), Origin: origin, Locked: true}
	e.notify(EventPlaced, it, it.record.Indices)
	return nil
}
