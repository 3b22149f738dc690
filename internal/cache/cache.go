// Package cache is the local device cache: it holds the lightweight tank
// snapshot and last-known preview reference so an overview can render before
// the full session loads.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"aquacore/pkg/domain"
)

// Entry is what the overview needs per tank.
type Entry struct {
	Snapshot   domain.TankSnapshot `json:"snapshot"`
	PreviewURI string              `json:"previewUri,omitempty"`
}

// Cache stores one JSON file per tank under a root directory.
type Cache struct {
	dir string
}

// New returns a cache rooted at dir, creating it if needed.
func New(dir string) (*Cache, error) {
	if dir == "" {
		dir = "./cache"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) pathFor(key domain.SessionKey) string {
	return filepath.Join(c.dir, key.UserID, key.TankID+".json")
}

// Put writes the entry atomically. A torn write never corrupts a previous
// entry.
func (c *Cache) Put(key domain.SessionKey, e Entry) error {
	if err := key.Validate(); err != nil {
		return err
	}
	path := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Get returns the cached entry and whether one exists. A corrupt entry is
// treated as absent; the cache is advisory.
func (c *Cache) Get(key domain.SessionKey) (Entry, bool, error) {
	if err := key.Validate(); err != nil {
		return Entry{}, false, err
	}
	data, err := os.ReadFile(c.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Delete removes the cached entry; missing entries are fine.
func (c *Cache) Delete(key domain.SessionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	err := os.Remove(c.pathFor(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
