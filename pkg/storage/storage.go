package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jwebster45206/inventory-engine/pkg/persist"
	"github.com/jwebster45206/inventory-engine/pkg/shape"
)

// ErrShapeNotFound is returned by GetShape for an unknown shape ID.
var ErrShapeNotFound = errors.New("shape not found")

// Storage defines a unified interface for all storage operations
// This interface combines snapshot persistence (Redis) with shape loading (filesystem)
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Snapshot operations (Redis-backed)
	// LoadSnapshot returns nil, nil when no snapshot exists for id
	SaveSnapshot(ctx context.Context, id uuid.UUID, s *persist.Snapshot) error
	LoadSnapshot(ctx context.Context, id uuid.UUID) (*persist.Snapshot, error)
	DeleteSnapshot(ctx context.Context, id uuid.UUID) error

	// Shape operations (filesystem-backed)
	ListShapes(ctx context.Context) ([]string, error)
	GetShape(ctx context.Context, id string) (*shape.Mask, error)
}
