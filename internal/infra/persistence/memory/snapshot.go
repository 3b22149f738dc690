package memory

import (
	"time"

	"aquacore/pkg/domain"
)

// SnapshotRecord is one tank's persisted form.
type SnapshotRecord struct {
	Doc       domain.Document `json:"doc"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Snapshot is the full exportable state, keyed by user id then tank id. The
// durable stores serialize it after every successful mutation and hydrate
// from it on startup.
type Snapshot struct {
	Tanks map[string]map[string]SnapshotRecord `json:"tanks"`
}

// ExportState returns a deep copy of the current state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Tanks: make(map[string]map[string]SnapshotRecord, len(s.tanks))}
	for user, byTank := range s.tanks {
		out := make(map[string]SnapshotRecord, len(byTank))
		for id, rec := range byTank {
			out[id] = SnapshotRecord{Doc: copyDoc(rec.doc), UpdatedAt: rec.updatedAt}
		}
		snap.Tanks[user] = out
	}
	return snap
}

// ImportState replaces the current state with the snapshot. Watchers are not
// notified; import happens before a store is handed out.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tanks = make(map[string]map[string]*record, len(snap.Tanks))
	for user, byTank := range snap.Tanks {
		out := make(map[string]*record, len(byTank))
		for id, sr := range byTank {
			out[id] = &record{doc: copyDoc(sr.Doc), updatedAt: sr.UpdatedAt}
		}
		s.tanks[user] = out
	}
}
