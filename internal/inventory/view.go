package inventory

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/jwebster45206/inventory-engine/pkg/placement"
	"github.com/jwebster45206/inventory-engine/pkg/shape"
)

// View is the read model of one inventory.
type View struct {
	ID        uuid.UUID  `json:"id"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Container string     `json:"container,omitempty"`
	FreeCount int        `json:"free_count"`
	Free      []bool     `json:"free"`
	Visual    []int      `json:"visual"`
	Items     []ItemView `json:"items"`
}

// ItemView is the read model of one placed item.
type ItemView struct {
	ID      uuid.UUID       `json:"id"`
	ShapeID string          `json:"shape,omitempty"`
	Name    string          `json:"name,omitempty"`
	Anchor  shape.Point     `json:"anchor"`
	Origin  shape.Point     `json:"origin"`
	Indices []int           `json:"indices"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func itemView(it *placement.Item) ItemView {
	v := ItemView{
		ID:      it.ID,
		Anchor:  it.Anchor,
		Indices: it.Indices(),
		Payload: it.Payload,
	}
	if rec := it.Record(); rec != nil {
		v.Origin = rec.Origin
	}
	if it.Shape != nil {
		v.ShapeID = it.Shape.ID
		if it.Shape.ID != "" || it.Shape.Name != "" {
			v.Name = it.Shape.DisplayName()
		}
	}
	return v
}

// view must be called with s.mu held, or before s is shared.
func (s *session) view() *View {
	v := &View{
		ID:        s.id,
		Width:     s.grid.Width(),
		Height:    s.grid.Height(),
		Container: s.container,
		FreeCount: s.grid.FreeCount(),
		Free:      s.grid.FreeMap(),
		Visual:    s.grid.VisualStates(),
		Items:     make([]ItemView, 0, len(s.items)),
	}
	for _, it := range s.items {
		v.Items = append(v.Items, itemView(it))
	}
	return v
}
