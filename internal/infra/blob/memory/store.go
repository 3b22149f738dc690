// Package memory implements the blob store in process memory, for tests and
// ephemeral development setups.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"aquacore/internal/infra/blob/core"
)

// Compile-time contract assertion.
var _ core.Store = (*Store)(nil)

type object struct {
	data      []byte
	info      core.Info
	createdAt time.Time
}

// Store keeps blobs in a map. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New returns an empty in-memory blob store.
func New() *Store {
	return &Store{objects: make(map[string]object)}
}

func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put replaces any existing blob under the key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, err
	}
	sum := sha256.Sum256(data)
	now := time.Now().UTC()
	info := core.Info{
		Key: key, Size: int64(len(data)), ContentType: opts.ContentType,
		ETag: hex.EncodeToString(sum[:]), LastModified: now, URL: pseudoURL(key),
	}
	s.mu.Lock()
	created := now
	if prev, ok := s.objects[key]; ok {
		created = prev.createdAt
	}
	s.objects[key] = object{data: data, info: info, createdAt: created}
	s.mu.Unlock()
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return core.Info{}, nil, core.ErrNotFound
	}
	return obj.info, io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return core.Info{}, core.ErrNotFound
	}
	return obj.info, nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return false, nil
	}
	delete(s.objects, key)
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var infos []core.Info
	for key, obj := range s.objects {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			infos = append(infos, obj.info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *Store) PresignURL(ctx context.Context, key string, opts core.SignedURLOptions) (string, error) {
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return "", core.ErrUnsupported
	}
	return pseudoURL(key), nil
}

func pseudoURL(key string) string {
	return (&url.URL{Scheme: "memory", Host: "blob", Path: "/" + key}).String()
}
