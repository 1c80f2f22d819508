// Package inventory serves grids to concurrent callers. Each inventory lives
// in an in-memory session guarded by its own mutex; every mutation is written
// through to storage as a snapshot and announced to an event publisher.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/inventory-engine/internal/services/events"
	"github.com/jwebster45206/inventory-engine/pkg/grid"
	"github.com/jwebster45206/inventory-engine/pkg/persist"
	"github.com/jwebster45206/inventory-engine/pkg/placement"
	"github.com/jwebster45206/inventory-engine/pkg/shape"
	"github.com/jwebster45206/inventory-engine/pkg/storage"
)

var (
	ErrNotFound     = errors.New("inventory not found")
	ErrItemNotFound = errors.New("item not found")
	ErrInvalidSize  = errors.New("invalid inventory size")
	ErrNoShape      = errors.New("a shape ID or inline shape is required")
)

// MaxDimension bounds the width and height of a new inventory.
const MaxDimension = 256

// Publisher receives inventory events. The Redis broadcaster implements it.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// HistoryClearer is implemented by publishers that retain events per
// inventory. Delete uses it to drop the history of a deleted inventory.
type HistoryClearer interface {
	ClearHistory(ctx context.Context, inventoryID uuid.UUID) error
}

var (
	_ Publisher      = (*events.Broadcaster)(nil)
	_ HistoryClearer = (*events.Broadcaster)(nil)
)

type session struct {
	mu        sync.Mutex
	id        uuid.UUID
	container string
	grid      *grid.Grid
	items     []*placement.Item
	// deleted is set under mu by Delete; callers that were waiting for mu
	// must treat the session as gone
	deleted bool
}

func (s *session) item(id uuid.UUID) (*placement.Item, int) {
	for i, it := range s.items {
		if it.ID == id {
			return it, i
		}
	}
	return nil, -1
}

// Manager owns the live inventories.
type Manager struct {
	store     storage.Storage
	publisher Publisher
	engine    *placement.Engine
	logger    *slog.Logger

	defaultWidth  int
	defaultHeight int

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

// NewManager creates a manager. publisher may be nil.
func NewManager(store storage.Storage, publisher Publisher, logger *slog.Logger, defaultWidth, defaultHeight int) *Manager {
	m := &Manager{
		store:         store,
		publisher:     publisher,
		logger:        logger,
		defaultWidth:  max(1, defaultWidth),
		defaultHeight: max(1, defaultHeight),
		sessions:      make(map[uuid.UUID]*session),
	}
	m.engine = placement.NewEngine(func(ev placement.Event, it *placement.Item, indices []int) {
		m.logger.Debug("Placement event", "event", ev.String(), "item_id", it.ID, "cells", len(indices))
	})
	return m
}

// CreateRequest describes a new inventory. When Container names a shape, its
// non-zero cells are disabled and its size wins over Width and Height. Zero
// dimensions fall back to the manager defaults.
type CreateRequest struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Container string `json:"container,omitempty"`
}

// Create builds, stores and registers a new inventory.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*View, error) {
	var g *grid.Grid
	if req.Container != "" {
		mask, err := m.store.GetShape(ctx, req.Container)
		if err != nil {
			return nil, err
		}
		if mask.Width > MaxDimension || mask.Height > MaxDimension {
			return nil, fmt.Errorf("%w: container %dx%d", ErrInvalidSize, mask.Width, mask.Height)
		}
		g = grid.NewFromMask(mask)
	} else {
		w, h := req.Width, req.Height
		if w == 0 {
			w = m.defaultWidth
		}
		if h == 0 {
			h = m.defaultHeight
		}
		if w < 1 || h < 1 || w > MaxDimension || h > MaxDimension {
			return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
		}
		g = grid.New(w, h)
	}

	s := &session{id: uuid.New(), container: req.Container, grid: g}
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Info("Inventory created", "inventory_id", s.id, "width", g.Width(), "height", g.Height(), "container", req.Container)
	ev := events.NewEvent(events.EventTypeCreated, s.id)
	ev.Data = map[string]interface{}{"width": g.Width(), "height": g.Height()}
	m.publish(ctx, ev)
	return s.view(), nil
}

// Get returns the current state of an inventory, loading it from storage if
// it is not live.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	s, err := m.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.view(), nil
}

// Delete drops an inventory from storage and memory. Operations already
// waiting on the inventory fail with ErrNotFound once it is gone.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	s, err := m.lock(ctx, id)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	if err := m.store.DeleteSnapshot(ctx, id); err != nil {
		return err
	}
	s.deleted = true

	m.mu.Lock()
	if m.sessions[id] == s {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	m.logger.Info("Inventory deleted", "inventory_id", id)
	m.publish(ctx, events.NewEvent(events.EventTypeDeleted, id))
	if hc, ok := m.publisher.(HistoryClearer); ok {
		if err := hc.ClearHistory(ctx, id); err != nil {
			m.logger.Warn("Failed to clear event history", "inventory_id", id, "error", err)
		}
	}
	return nil
}

// PlaceRequest places one item. Exactly one of ShapeID and Shape is used,
// ShapeID first. Without Origin the item is auto-placed.
type PlaceRequest struct {
	ShapeID string          `json:"shape,omitempty"`
	Shape   *shape.Mask     `json:"inline_shape,omitempty"`
	Anchor  shape.Point     `json:"anchor"`
	Origin  *shape.Point    `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Place validates and commits a new item. It returns placement.ErrCannotPlace
// or placement.ErrNoSpace when the item does not fit.
func (m *Manager) Place(ctx context.Context, id uuid.UUID, req PlaceRequest) (*ItemView, error) {
	mask, err := m.resolveShape(ctx, req.ShapeID, req.Shape)
	if err != nil {
		return nil, err
	}
	s, err := m.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	it := placement.NewItem(mask, req.Anchor)
	it.Payload = req.Payload
	if req.Origin != nil {
		err = m.engine.TryPlace(it, s.grid, req.Anchor, *req.Origin)
	} else {
		_, err = m.engine.AutoPlace(it, s.grid)
	}
	if err != nil {
		return nil, err
	}
	s.items = append(s.items, it)

	if err := m.save(ctx, s); err != nil {
		m.engine.Release(it)
		s.items = s.items[:len(s.items)-1]
		return nil, err
	}

	ev := events.NewEvent(events.EventTypeItemPlaced, id)
	ev.ItemID = it.ID.String()
	ev.Indices = it.Indices()
	ev.Data = map[string]interface{}{"shape": mask.ID, "origin": it.Record().Origin}
	m.publish(ctx, ev)

	iv := itemView(it)
	return &iv, nil
}

// CheckRequest asks whether a shape fits at an origin.
type CheckRequest struct {
	ShapeID string      `json:"shape,omitempty"`
	Shape   *shape.Mask `json:"inline_shape,omitempty"`
	Anchor  shape.Point `json:"anchor"`
	Origin  shape.Point `json:"origin"`
}

// CheckResult reports a fit test. Indices are the cells the shape would cover
// and are empty when it does not fit.
type CheckResult struct {
	Fits    bool  `json:"fits"`
	Indices []int `json:"indices"`
}

// Check runs CanPlace without mutating the inventory.
func (m *Manager) Check(ctx context.Context, id uuid.UUID, req CheckRequest) (*CheckResult, error) {
	mask, err := m.resolveShape(ctx, req.ShapeID, req.Shape)
	if err != nil {
		return nil, err
	}
	s, err := m.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	res := &CheckResult{Indices: []int{}}
	if s.grid.CanPlace(mask, req.Anchor, req.Origin) {
		res.Fits = true
		res.Indices, _ = s.grid.Footprint(mask, req.Anchor, req.Origin)
	}
	return res, nil
}

// Release frees an item's cells and removes it. It returns the freed indices.
func (m *Manager) Release(ctx context.Context, id, itemID uuid.UUID) ([]int, error) {
	s, err := m.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	it, pos := s.item(itemID)
	if it == nil {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	origin := it.Record().Origin
	freed := m.engine.Release(it)
	s.items = append(s.items[:pos], s.items[pos+1:]...)

	if err := m.save(ctx, s); err != nil {
		// the cells were just freed, so putting the item back cannot collide
		if perr := m.engine.TryPlace(it, s.grid, it.Anchor, origin); perr != nil {
			m.logger.Error("Failed to restore released item", "inventory_id", id, "item_id", itemID, "error", perr)
		}
		s.items = append(s.items[:pos], append([]*placement.Item{it}, s.items[pos:]...)...)
		return nil, err
	}

	ev := events.NewEvent(events.EventTypeItemReleased, id)
	ev.ItemID = itemID.String()
	ev.Indices = freed
	m.publish(ctx, ev)
	return freed, nil
}

// lock returns the live session for id with its mutex held. It fails with
// ErrNotFound when the session was deleted while the caller waited.
func (m *Manager) lock(ctx context.Context, id uuid.UUID) (*session, error) {
	s, err := m.session(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// session returns the live session for id, loading it from storage on a miss.
func (m *Manager) session(ctx context.Context, id uuid.UUID) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}

	snap, err := m.store.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	g, items, err := persist.Apply(*snap, storeShapes{ctx: ctx, store: m.store}, m.engine)
	if err != nil {
		m.logger.Error("Failed to apply snapshot", "inventory_id", id, "error", err)
		return nil, fmt.Errorf("failed to apply snapshot: %w", err)
	}
	s = &session{id: id, container: snap.Container, grid: g, items: items}
	m.sessions[id] = s

	m.logger.Info("Inventory loaded", "inventory_id", id, "items", len(items))
	ev := events.NewEvent(events.EventTypeLoaded, id)
	ev.Data = map[string]interface{}{"items": len(items)}
	m.publish(ctx, ev)
	return s, nil
}

func (m *Manager) save(ctx context.Context, s *session) error {
	snap := persist.Capture(s.id, s.grid, s.items)
	snap.Container = s.container
	return m.store.SaveSnapshot(ctx, s.id, &snap)
}

func (m *Manager) resolveShape(ctx context.Context, id string, inline *shape.Mask) (*shape.Mask, error) {
	if id != "" {
		return m.store.GetShape(ctx, id)
	}
	if inline != nil {
		return inline, nil
	}
	return nil, ErrNoShape
}

// publish is best effort: a failed broadcast never fails the mutation.
func (m *Manager) publish(ctx context.Context, ev events.Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.logger.Warn("Failed to publish inventory event", "inventory_id", ev.InventoryID, "event_type", ev.Type, "error", err)
	}
}

// storeShapes adapts Storage to persist.ShapeSource for one request.
type storeShapes struct {
	ctx   context.Context
	store storage.Storage
}

func (s storeShapes) Shape(id string) (*shape.Mask, bool) {
	m, err := s.store.GetShape(s.ctx, id)
	if err != nil {
		return nil, false
	}
	return m, true
}
