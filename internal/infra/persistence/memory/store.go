// Package memory provides the reference in-memory tank store. The durable
// stores embed it and snapshot its state after every successful mutation, so
// merge and watch semantics live here exactly once.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aquacore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.TankStore = (*Store)(nil)

type record struct {
	doc       domain.Document
	updatedAt time.Time
}

// Store keeps tank documents per user and tank id. All methods are safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	tanks    map[string]map[string]*record
	watchers map[domain.SessionKey]map[int]func(domain.Document)
	nextW    int

	// now and newID are replaced in tests for determinism.
	now   func() time.Time
	newID func() string
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		tanks:    make(map[string]map[string]*record),
		watchers: make(map[domain.SessionKey]map[int]func(domain.Document)),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create allocates a new tank document with default settings.
func (s *Store) Create(ctx context.Context, userID, name string) (string, error) {
	if userID == "" {
		return "", domain.ErrUnauthenticated
	}
	settings := domain.DefaultSettings()
	doc := domain.Document{
		"name": name,
		"settings": map[string]any{
			"env":           string(settings.Env),
			"temp":          settings.Temp,
			"oxy":           settings.Oxy,
			"backgroundKey": settings.BackgroundKey,
		},
		"items": map[string]any{},
	}

	s.mu.Lock()
	id := s.newID()
	if s.tanks[userID] == nil {
		s.tanks[userID] = make(map[string]*record)
	}
	s.tanks[userID][id] = &record{doc: doc, updatedAt: s.now()}
	s.mu.Unlock()
	return id, nil
}

// Read returns a copy of the current document, or nil when the tank does
// not exist. Absence is not an error.
func (s *Store) Read(ctx context.Context, key domain.SessionKey) (domain.Document, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.tanks[key.UserID][key.TankID]
	if rec == nil {
		return nil, nil
	}
	return copyDoc(rec.doc), nil
}

// Write merges partial into the stored document, creating the document when
// absent. Top-level keys present in partial replace the stored value
// wholesale; absent keys are left untouched. Replacement at the top level is
// what lets a save-point drop removed occupants from the items map.
func (s *Store) Write(ctx context.Context, key domain.SessionKey, partial domain.Document) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.tanks[key.UserID] == nil {
		s.tanks[key.UserID] = make(map[string]*record)
	}
	rec := s.tanks[key.UserID][key.TankID]
	if rec == nil {
		rec = &record{doc: domain.Document{}}
		s.tanks[key.UserID][key.TankID] = rec
	}
	rec.doc = mergeTop(rec.doc, partial)
	rec.updatedAt = s.now()
	snapshot := copyDoc(rec.doc)
	fns := s.watchersFor(key)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
	return nil
}

// Delete removes the document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, key domain.SessionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	_, existed := s.tanks[key.UserID][key.TankID]
	delete(s.tanks[key.UserID], key.TankID)
	fns := s.watchersFor(key)
	s.mu.Unlock()

	if existed {
		for _, fn := range fns {
			fn(nil)
		}
	}
	return nil
}

// List returns references to the user's tanks, most recently updated first.
func (s *Store) List(ctx context.Context, userID string) ([]domain.TankRef, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]domain.TankRef, 0, len(s.tanks[userID]))
	for id, rec := range s.tanks[userID] {
		ref := domain.TankRef{TankID: id, UpdatedAt: rec.updatedAt}
		if name, ok := rec.doc["name"].(string); ok {
			ref.Name = name
		}
		if uri, ok := rec.doc["previewUri"].(string); ok {
			ref.PreviewURI = uri
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].UpdatedAt.Equal(refs[j].UpdatedAt) {
			return refs[i].UpdatedAt.After(refs[j].UpdatedAt)
		}
		return refs[i].TankID < refs[j].TankID
	})
	return refs, nil
}

// Watch registers fn to receive the full document after every committed
// write, and nil on delete. The returned cancel is idempotent.
func (s *Store) Watch(ctx context.Context, key domain.SessionKey, fn func(domain.Document)) (func(), error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[int]func(domain.Document))
	}
	id := s.nextW
	s.nextW++
	s.watchers[key][id] = fn
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers[key], id)
			s.mu.Unlock()
		})
	}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return cancel, nil
}

func (s *Store) watchersFor(key domain.SessionKey) []func(domain.Document) {
	fns := make([]func(domain.Document), 0, len(s.watchers[key]))
	ids := make([]int, 0, len(s.watchers[key]))
	for id := range s.watchers[key] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, s.watchers[key][id])
	}
	return fns
}

// mergeTop merges partial into base without mutating either: top-level keys
// from partial replace, everything else carries over.
func mergeTop(base, partial map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(partial))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = copyValue(v)
	}
	return out
}

func copyDoc(doc domain.Document) domain.Document {
	return mergeTop(nil, doc)
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	}
	return v
}
