package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/inventory-engine/pkg/persist"
)

// Snapshot operations (Redis-backed)

func snapshotKey(id uuid.UUID) string {
	return "inventory:" + id.String()
}

func (r *RedisStorage) SaveSnapshot(ctx context.Context, id uuid.UUID, s *persist.Snapshot) error {
	if s == nil {
		return errors.New("snapshot cannot be nil")
	}

	data, err := json.Marshal(s)
	if err != nil {
		r.logger.Error("Failed to marshal snapshot", "uuid", id, "error", err)
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := r.client.Set(ctx, snapshotKey(id), data, r.ttl).Err(); err != nil {
		r.logger.Error("Failed to save snapshot", "uuid", id, "error", err)
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadSnapshot(ctx context.Context, id uuid.UUID) (*persist.Snapshot, error) {
	data, err := r.client.Get(ctx, snapshotKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Snapshot not found", "uuid", id)
			return nil, nil
		}
		r.logger.Error("Failed to load snapshot", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var s persist.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		r.logger.Error("Failed to unmarshal snapshot", "uuid", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &s, nil
}

func (r *RedisStorage) DeleteSnapshot(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, snapshotKey(id)).Err(); err != nil {
		r.logger.Error("Failed to delete snapshot", "uuid", id, "error", err)
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
