// Package core wires the aquacore engine together: it loads tank sessions
// from the document store, applies occupant mutations, and coordinates the
// debounced persistence, snapshot cache, and preview storage around them.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aquacore/internal/cache"
	"aquacore/internal/compat"
	"aquacore/internal/envrec"
	"aquacore/internal/persist"
	"aquacore/internal/preview"
	"aquacore/internal/tank"
	"aquacore/pkg/domain"
	"aquacore/pkg/slug"
)

// Service is the session-facing façade. It holds no per-tank occupant
// state: every operation reads the current document, derives the next
// occupant collection, and persists it.
type Service struct {
	tanks    domain.TankStore
	catalog  []domain.Species
	eval     *compat.Evaluator
	seq      *tank.Sequencer
	cache    *cache.Cache
	previews *preview.Manager
	log      *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	writers map[domain.SessionKey]*persist.Writer
}

// Options configures optional collaborators for NewService.
type Options struct {
	Catalog   []domain.Species
	SelfAvoid []string
	Bounds    tank.Bounds
	Cache     *cache.Cache
	Previews  *preview.Manager
	Logger    *slog.Logger
	Debounce  time.Duration
}

// NewService builds a Service over the given tank store.
func NewService(tanks domain.TankStore, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	bounds := opts.Bounds
	if bounds.Width <= 0 || bounds.Height <= 0 {
		bounds = tank.Bounds{Width: 320, Height: 220}
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = persist.DefaultDelay
	}
	return &Service{
		tanks:    tanks,
		catalog:  opts.Catalog,
		eval:     compat.NewEvaluator(opts.SelfAvoid...),
		seq:      tank.NewSequencer(bounds),
		cache:    opts.Cache,
		previews: opts.Previews,
		log:      log,
		debounce: debounce,
		writers:  make(map[domain.SessionKey]*persist.Writer),
	}
}

// Store exposes the underlying tank store.
func (s *Service) Store() domain.TankStore { return s.tanks }

// Catalog returns the species visible in the given environment.
func (s *Service) Catalog(env domain.WaterType) []domain.Species {
	if env == "" {
		return s.catalog
	}
	out := make([]domain.Species, 0, len(s.catalog))
	for _, sp := range s.catalog {
		if sp.WaterType == env {
			out = append(out, sp)
		}
	}
	return out
}

// LookupSpecies resolves a catalog entry by canonical id.
func (s *Service) LookupSpecies(id string) (domain.Species, bool) {
	want := slug.Make(id)
	for _, sp := range s.catalog {
		if slug.CanonicalID(sp) == want || sp.ID == id {
			return sp, true
		}
	}
	return domain.Species{}, false
}

// Session is a loaded tank: the settings and occupant collection derived
// from the stored document.
type Session struct {
	Key       domain.SessionKey
	Settings  domain.TankSettings
	Occupants []domain.TankItem
}

// CreateTank allocates a new tank for the user.
func (s *Service) CreateTank(ctx context.Context, userID, name string) (string, error) {
	return s.tanks.Create(ctx, userID, name)
}

// ListTanks returns the user's tanks, most recently updated first.
func (s *Service) ListTanks(ctx context.Context, userID string) ([]domain.TankRef, error) {
	return s.tanks.List(ctx, userID)
}

// DeleteTank removes the tank document, its cached snapshot, and its
// preview.
func (s *Service) DeleteTank(ctx context.Context, key domain.SessionKey) error {
	if err := s.tanks.Delete(ctx, key); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(key); err != nil {
			s.log.Warn("drop cached snapshot failed", slog.Any("error", err))
		}
	}
	if s.previews != nil {
		if err := s.previews.Delete(ctx, key); err != nil {
			s.log.Warn("drop preview failed", slog.Any("error", err))
		}
	}
	return nil
}

// Load hydrates the tank session. A missing document yields default
// settings and an empty occupant collection.
func (s *Service) Load(ctx context.Context, key domain.SessionKey) (Session, error) {
	doc, err := s.tanks.Read(ctx, key)
	if err != nil {
		return Session{}, err
	}
	if doc == nil {
		return Session{Key: key, Settings: domain.DefaultSettings()}, nil
	}
	settings, occupants := tank.Hydrate(doc)
	return Session{Key: key, Settings: settings, Occupants: occupants}, nil
}

// Evaluation bundles both compatibility views for a candidate.
type Evaluation struct {
	Verdict   compat.Verdict
	Conflicts []string
}

// Evaluate runs the quick label and the detailed conflict list for placing
// candidate into the session's tank.
func (s *Service) Evaluate(sess Session, candidate domain.Species) Evaluation {
	return Evaluation{
		Verdict:   s.eval.Quick(candidate, sess.Occupants),
		Conflicts: s.eval.Conflicts(candidate, sess.Occupants, sess.Settings.Env),
	}
}

// Recommendation bundles the environmental guidance for a session.
type Recommendation struct {
	Temperature *envrec.TempRecommendation
	Oxygen      envrec.OxygenRecommendation
	Summary     envrec.Summary
}

// Recommend derives environmental guidance from the occupant set.
func (s *Service) Recommend(sess Session) Recommendation {
	return Recommendation{
		Temperature: envrec.Temperature(sess.Occupants),
		Oxygen:      envrec.Oxygen(sess.Occupants),
		Summary:     envrec.Summarize(sess.Occupants),
	}
}

// Place starts a placement. Fish return a pending placement the caller
// must confirm with a nickname; anything else commits and persists
// immediately.
func (s *Service) Place(ctx context.Context, sess Session, candidate domain.Species, x, y float64) (Session, *tank.PendingPlacement, error) {
	next, pending := s.seq.Place(sess.Occupants, candidate, x, y)
	sess.Occupants = next
	if pending != nil {
		return sess, pending, nil
	}
	return sess, nil, s.flush(ctx, sess)
}

// ConfirmPlacement commits a pending fish placement and persists
// immediately; confirmed placements are save-points.
func (s *Service) ConfirmPlacement(ctx context.Context, sess Session, pending tank.PendingPlacement, nickname string) (Session, error) {
	sess.Occupants = s.seq.ConfirmPlacement(sess.Occupants, pending, nickname)
	return sess, s.flush(ctx, sess)
}

// Move re-positions an occupant and schedules a debounced write: drags
// produce bursts of moves and only the settled position needs to reach
// storage.
func (s *Service) Move(ctx context.Context, sess Session, instanceID string, x, y float64) (Session, bool, error) {
	next, moved, err := s.seq.Move(sess.Occupants, instanceID, x, y)
	if err != nil {
		return sess, false, err
	}
	sess.Occupants = next
	if moved {
		s.writerFor(sess.Key).Enqueue(tank.BuildPersistPayload(sess.Occupants, sess.Settings))
		s.cacheSnapshot(sess)
	}
	return sess, moved, nil
}

// Rename updates an occupant's nickname and persists immediately.
func (s *Service) Rename(ctx context.Context, sess Session, instanceID, nickname string) (Session, error) {
	next, err := s.seq.Rename(sess.Occupants, instanceID, nickname)
	if err != nil {
		return sess, err
	}
	sess.Occupants = next
	return sess, s.flush(ctx, sess)
}

// Remove deletes an occupant and persists immediately.
func (s *Service) Remove(ctx context.Context, sess Session, instanceID string) (Session, error) {
	next, err := s.seq.Remove(sess.Occupants, instanceID)
	if err != nil {
		return sess, err
	}
	sess.Occupants = next
	return sess, s.flush(ctx, sess)
}

// UpdateSettings replaces the environment controls and persists
// immediately; closing the settings drawer is a save-point.
func (s *Service) UpdateSettings(ctx context.Context, sess Session, settings domain.TankSettings) (Session, error) {
	sess.Settings = settings
	return sess, s.flush(ctx, sess)
}

// Snapshot builds the display snapshot and refreshes the local cache.
func (s *Service) Snapshot(sess Session) domain.TankSnapshot {
	snap := tank.BuildDisplaySnapshot(sess.Occupants, sess.Settings)
	s.cacheSnapshotValue(sess.Key, snap)
	return snap
}

// CachedSnapshot returns the last cached overview entry, if any.
func (s *Service) CachedSnapshot(key domain.SessionKey) (cache.Entry, bool) {
	if s.cache == nil {
		return cache.Entry{}, false
	}
	entry, ok, err := s.cache.Get(key)
	if err != nil {
		s.log.Warn("read cached snapshot failed", slog.Any("error", err))
		return cache.Entry{}, false
	}
	return entry, ok
}

// SavePreview stores a rendered preview image and records its URL.
func (s *Service) SavePreview(ctx context.Context, key domain.SessionKey, png []byte) (string, error) {
	if s.previews == nil {
		return "", fmt.Errorf("preview storage not configured")
	}
	return s.previews.Save(ctx, key, png)
}

// LoadPreview returns the stored preview bytes.
func (s *Service) LoadPreview(ctx context.Context, key domain.SessionKey) ([]byte, error) {
	if s.previews == nil {
		return nil, fmt.Errorf("preview storage not configured")
	}
	return s.previews.Load(ctx, key)
}

// Watch subscribes to committed document changes for the tank.
func (s *Service) Watch(ctx context.Context, key domain.SessionKey, fn func(domain.Document)) (func(), error) {
	return s.tanks.Watch(ctx, key, fn)
}

// Flush persists the session state immediately, bypassing the debounce.
// Callers use it on navigation and backgrounding events.
func (s *Service) Flush(ctx context.Context, sess Session) error {
	return s.flush(ctx, sess)
}

// Close cancels all pending debounced writes.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.writers {
		w.Close()
	}
	s.writers = make(map[domain.SessionKey]*persist.Writer)
}

func (s *Service) flush(ctx context.Context, sess Session) error {
	err := s.writerFor(sess.Key).Flush(ctx, tank.BuildPersistPayload(sess.Occupants, sess.Settings))
	if err != nil {
		return err
	}
	s.cacheSnapshot(sess)
	return nil
}

func (s *Service) writerFor(key domain.SessionKey) *persist.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.writers[key]
	if !ok {
		w = persist.NewWriter(s.tanks, key, s.log)
		w.Delay = s.debounce
		s.writers[key] = w
	}
	return w
}

func (s *Service) cacheSnapshot(sess Session) {
	s.cacheSnapshotValue(sess.Key, tank.BuildDisplaySnapshot(sess.Occupants, sess.Settings))
}

func (s *Service) cacheSnapshotValue(key domain.SessionKey, snap domain.TankSnapshot) {
	if s.cache == nil {
		return
	}
	entry, _, err := s.cache.Get(key)
	if err != nil {
		s.log.Warn("read cached snapshot failed", slog.Any("error", err))
		entry = cache.Entry{}
	}
	entry.Snapshot = snap
	if err := s.cache.Put(key, entry); err != nil {
		s.log.Warn("cache snapshot failed", slog.Any("error", err))
	}
}
