package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/inventory-engine/pkg/persist"
	"github.com/jwebster45206/inventory-engine/pkg/shape"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]*persist.Snapshot
	shapes    map[string]*shape.Mask
	pingError error
	saveError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		snapshots: make(map[uuid.UUID]*persist.Snapshot),
		shapes:    make(map[string]*shape.Mask),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the mock to fail on SaveSnapshot
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

// SaveSnapshot mocks saving a snapshot
func (m *MockStorage) SaveSnapshot(ctx context.Context, id uuid.UUID, s *persist.Snapshot) error {
	if s == nil {
		return errors.New("snapshot cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	cp := *s
	m.snapshots[id] = &cp
	return nil
}

// LoadSnapshot mocks loading a snapshot
func (m *MockStorage) LoadSnapshot(ctx context.Context, id uuid.UUID) (*persist.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, exists := m.snapshots[id]
	if !exists {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// DeleteSnapshot mocks deleting a snapshot
func (m *MockStorage) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, id)
	return nil
}

// ListShapes mocks listing shape IDs, sorted
func (m *MockStorage) ListShapes(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.shapes))
	for id := range m.shapes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// GetShape mocks getting a shape by ID
func (m *MockStorage) GetShape(ctx context.Context, id string) (*shape.Mask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, exists := m.shapes[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrShapeNotFound, id)
	}
	return s.Clone(), nil
}

// AddShape adds a shape to the mock storage (for testing). The mask's ID is
// set to id.
func (m *MockStorage) AddShape(id string, s *shape.Mask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = id
	m.shapes[id] = s
}
