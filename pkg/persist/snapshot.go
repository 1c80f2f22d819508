package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/inventory-engine/pkg/grid"
	"github.com/jwebster45206/inventory-engine/pkg/placement"
	"github.com/jwebster45206/inventory-engine/pkg/shape"
)

var (
	// ErrUnknownShape is returned by Apply when an item's shape can be
	// resolved neither from the ShapeSource nor from the inline copy.
	ErrUnknownShape = errors.New("unknown shape")
	// ErrDuplicateCell is returned by Apply when two items claim one cell.
	ErrDuplicateCell = errors.New("cell claimed by more than one item")
)

// ItemRecord is one placed item in a Snapshot. Shapes with an ID are stored
// by reference; anonymous shapes are stored inline.
type ItemRecord struct {
	ID      uuid.UUID       `json:"id"`
	ShapeID string          `json:"shape_id,omitempty"`
	Shape   *shape.Mask     `json:"shape,omitempty"`
	Anchor  shape.Point     `json:"anchor"`
	Origin  shape.Point     `json:"origin"`
	Indices []int           `json:"indices"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Snapshot is the complete persisted form of one inventory.
type Snapshot struct {
	ID        uuid.UUID    `json:"id"`
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Container string       `json:"container,omitempty"`
	State     SaveState    `json:"state"`
	Items     []ItemRecord `json:"items"`
	SavedAt   time.Time    `json:"saved_at"`
}

// ShapeSource resolves shape IDs when applying a snapshot.
type ShapeSource interface {
	Shape(id string) (*shape.Mask, bool)
}

// Catalog is a ShapeSource backed by a map keyed by shape ID.
type Catalog map[string]*shape.Mask

// NewCatalog indexes masks by their ID. Masks without an ID are skipped.
func NewCatalog(masks ...*shape.Mask) Catalog {
	c := make(Catalog, len(masks))
	for _, m := range masks {
		if m != nil && m.ID != "" {
			c[m.ID] = m
		}
	}
	return c
}

// Shape implements ShapeSource.
func (c Catalog) Shape(id string) (*shape.Mask, bool) {
	m, ok := c[id]
	return m, ok
}

// Capture snapshots g and every item in items that is placed in g. Items
// placed elsewhere, or not placed, are skipped.
func Capture(id uuid.UUID, g *grid.Grid, items []*placement.Item) Snapshot {
	s := Snapshot{
		ID:      id,
		Width:   g.Width(),
		Height:  g.Height(),
		State:   Save(g),
		Items:   make([]ItemRecord, 0, len(items)),
		SavedAt: time.Now().UTC(),
	}
	for _, it := range items {
		rec := it.Record()
		if !it.IsPlaced() || rec.Grid != g {
			continue
		}
		ir := ItemRecord{
			ID:      it.ID,
			Anchor:  it.Anchor,
			Origin:  rec.Origin,
			Indices: it.Indices(),
			Payload: it.Payload,
		}
		if it.Shape != nil && it.Shape.ID != "" {
			ir.ShapeID = it.Shape.ID
		} else {
			ir.Shape = it.Shape.Clone()
		}
		s.Items = append(s.Items, ir)
	}
	return s
}

// Apply rebuilds a grid and its placed items from s. Shapes are looked up
// by ID in shapes (which may be nil) and fall back to the inline copy. The
// engine's observers see an EventPlaced for every restored item.
func Apply(s Snapshot, shapes ShapeSource, e *placement.Engine) (*grid.Grid, []*placement.Item, error) {
	if s.Width < 1 || s.Height < 1 {
		return nil, nil, fmt.Errorf("%w: dimensions %dx%d", ErrSizeMismatch, s.Width, s.Height)
	}
	g := grid.New(s.Width, s.Height)
	if err := Restore(g, s.State); err != nil {
		return nil, nil, err
	}

	claimed := make(map[int]uuid.UUID)
	items := make([]*placement.Item, 0, len(s.Items))
	for _, rec := range s.Items {
		m, err := resolveShape(rec, shapes)
		if err != nil {
			return nil, nil, err
		}
		for _, idx := range rec.Indices {
			if other, ok := claimed[idx]; ok {
				return nil, nil, fmt.Errorf("%w: cell %d held by %s and %s", ErrDuplicateCell, idx, other, rec.ID)
			}
			claimed[idx] = rec.ID
		}

		it := &placement.Item{ID: rec.ID, Shape: m, Anchor: rec.Anchor, Payload: rec.Payload}
		if err := e.Restore(it, g, rec.Origin, rec.Indices); err != nil {
			return nil, nil, fmt.Errorf("failed to restore item %s: %w", rec.ID, err)
		}
		items = append(items, it)
	}
	return g, items, nil
}

func resolveShape(rec ItemRecord, shapes ShapeSource) (*shape.Mask, error) {
	if rec.ShapeID != "" && shapes != nil {
		if m, ok := shapes.Shape(rec.ShapeID); ok {
			return m, nil
		}
	}
	if rec.Shape != nil {
		return rec.Shape, nil
	}
	return nil, fmt.Errorf("%w: %q for item %s", ErrUnknownShape, rec.ShapeID, rec.ID)
}
