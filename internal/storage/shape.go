package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jwebster45206/inventory-engine/pkg/shape"
	pkgstorage "github.com/jwebster45206/inventory-engine/pkg/storage"
)

// Shape operations (filesystem-backed)

func (r *RedisStorage) shapesDir() string {
	return filepath.Join(r.dataDir, "shapes")
}

// ListShapes returns the IDs of all shape files, sorted.
func (r *RedisStorage) ListShapes(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.shapesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read shapes directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// GetShape loads data/shapes/{id}.json. The filename overrides any ID in the
// JSON.
func (r *RedisStorage) GetShape(ctx context.Context, id string) (*shape.Mask, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return nil, fmt.Errorf("%w: %q", pkgstorage.ErrShapeNotFound, id)
	}
	path := filepath.Join(r.shapesDir(), id+".json")
	r.logger.Debug("Loading shape", "id", id, "full_path", path)

	m, err := shape.LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", pkgstorage.ErrShapeNotFound, id)
		}
		return nil, fmt.Errorf("failed to load shape: %w", err)
	}
	return m, nil
}
