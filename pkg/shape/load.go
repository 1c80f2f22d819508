package shape

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadFile reads one shape file. The ID is taken from the file name.
func LoadFile(path string) (*Mask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Mask
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse shape JSON from %s: %w", path, err)
	}
	m.ID = strings.TrimSuffix(filepath.Base(path), ".json")
	return &m, nil
}

// LoadDir reads every *.json file in dir, sorted by ID. A missing directory
// yields no shapes; any unreadable file is an error.
func LoadDir(dir string) ([]*Mask, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	out := make([]*Mask, 0, len(paths))
	for _, p := range paths {
		m, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
