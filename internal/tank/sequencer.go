// Package tank applies mutations to a tank's occupant collection and builds
// the persistable and display representations of the tank. The collection is
// owned by the session holding the tank open: every operation takes the
// current collection and returns the next one, never mutating in place and
// never retaining a copy between calls.
package tank

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"aquacore/pkg/domain"
)

// Default occupant sprite extent, matching the rendered drag avatar.
const (
	DefaultItemWidth  = 160.0
	DefaultItemHeight = 110.0
)

// Bounds is the caller-supplied drawable region, in the caller's coordinate
// space. Positions are clamped into [0,Width] x [0,Height]. ItemWidth and
// ItemHeight describe the rendered occupant sprite: a drag holds the sprite
// by its center, so the drop test in InDropRange reaches half an extent past
// the drawable region.
type Bounds struct {
	Width      float64
	Height     float64
	ItemWidth  float64
	ItemHeight float64
}

// Clamp forces a point into the drawable region.
func (b Bounds) Clamp(x, y float64) (float64, float64) {
	return clamp(x, 0, b.Width), clamp(y, 0, b.Height)
}

// InDropRange reports whether a release at (x,y) still counts as a drop into
// the tank. The pointer rides the sprite center, half an extent away from the
// position anchor, so anchors up to half an extent outside the drawable
// region are pulled back in by Clamp rather than treated as leaving the tank.
func (b Bounds) InDropRange(x, y float64) bool {
	return x >= -b.ItemWidth/2 && x <= b.Width+b.ItemWidth/2 &&
		y >= -b.ItemHeight/2 && y <= b.Height+b.ItemHeight/2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PendingPlacement is a fish placement awaiting a nickname. The instance id
// is allocated up front so the eventual commit and any preview rendering
// agree on identity.
type PendingPlacement struct {
	Species    domain.Species
	X          float64
	Y          float64
	InstanceID string
}

// Sequencer applies occupant mutations. NewID generates instance ids; tests
// replace it with a deterministic generator.
type Sequencer struct {
	Bounds Bounds
	NewID  func() string
}

// NewSequencer returns a Sequencer over the given drawable bounds with
// collision-resistant instance id generation. Zero sprite extents fall back
// to the defaults.
func NewSequencer(b Bounds) *Sequencer {
	if b.ItemWidth <= 0 {
		b.ItemWidth = DefaultItemWidth
	}
	if b.ItemHeight <= 0 {
		b.ItemHeight = DefaultItemHeight
	}
	return &Sequencer{Bounds: b, NewID: uuid.NewString}
}

// Place starts a placement at (x,y), clamped into bounds. Fish transition to
// a pending placement: the caller must supply a nickname via
// ConfirmPlacement before the occupant is committed. Anything else commits
// immediately with the default nickname, classified as a plant when the
// catalog record carries no kind.
func (s *Sequencer) Place(occupants []domain.TankItem, candidate domain.Species, x, y float64) ([]domain.TankItem, *PendingPlacement) {
	x, y = s.Bounds.Clamp(x, y)
	if candidate.Kind == domain.KindFish {
		return occupants, &PendingPlacement{Species: candidate, X: x, Y: y, InstanceID: s.NewID()}
	}
	if candidate.Kind == "" {
		candidate.Kind = domain.KindPlant
	}
	next := s.commit(occupants, candidate, s.NewID(), x, y, defaultNickname(candidate))
	return next, nil
}

// ConfirmPlacement commits a pending fish placement with the supplied
// nickname, falling back to the default-name rule when the nickname is empty
// after trimming.
func (s *Sequencer) ConfirmPlacement(occupants []domain.TankItem, p PendingPlacement, nickname string) []domain.TankItem {
	// A pending placement is single-use: confirming it again while its
	// occupant already exists is a no-op, keeping instance ids unique
	// within the collection.
	if indexOf(occupants, p.InstanceID) >= 0 {
		return occupants
	}
	sp := p.Species
	if sp.Kind == "" {
		sp.Kind = domain.KindFish
	}
	name := strings.TrimSpace(nickname)
	if name == "" {
		name = defaultNickname(sp)
	}
	return s.commit(occupants, sp, p.InstanceID, p.X, p.Y, name)
}

// commit appends a new occupant carrying a composite display id so older
// persisted shapes remain readable.
func (s *Sequencer) commit(occupants []domain.TankItem, sp domain.Species, instanceID string, x, y float64, nickname string) []domain.TankItem {
	item := domain.TankItem{
		Species:    sp,
		InstanceID: instanceID,
		SpeciesID:  sp.ID,
		X:          x,
		Y:          y,
		Nickname:   nickname,
	}
	item.ID = fmt.Sprintf("%s::%s", sp.ID, instanceID)
	next := make([]domain.TankItem, 0, len(occupants)+1)
	next = append(next, occupants...)
	return append(next, item)
}

// Move re-positions an occupant. A target within drop range is clamped into
// the drawable region and committed; a target beyond it reverts the occupant
// to its pre-move position, so it is never dropped. The second result reports
// whether the move was applied.
func (s *Sequencer) Move(occupants []domain.TankItem, instanceID string, x, y float64) ([]domain.TankItem, bool, error) {
	idx := indexOf(occupants, instanceID)
	if idx < 0 {
		return occupants, false, domain.ErrNotFound{Kind: "occupant", ID: instanceID}
	}
	next := append([]domain.TankItem(nil), occupants...)
	if !s.Bounds.InDropRange(x, y) {
		return next, false, nil
	}
	next[idx].X, next[idx].Y = s.Bounds.Clamp(x, y)
	return next, true, nil
}

// Rename sets an occupant's nickname. An empty trimmed nickname falls back
// to the existing nickname, then to the default-name rule, so an occupant is
// never left nameless.
func (s *Sequencer) Rename(occupants []domain.TankItem, instanceID, nickname string) ([]domain.TankItem, error) {
	idx := indexOf(occupants, instanceID)
	if idx < 0 {
		return occupants, domain.ErrNotFound{Kind: "occupant", ID: instanceID}
	}
	next := append([]domain.TankItem(nil), occupants...)
	name := strings.TrimSpace(nickname)
	if name == "" {
		name = next[idx].Nickname
	}
	if name == "" {
		name = defaultNickname(next[idx].Species)
	}
	next[idx].Nickname = name
	return next, nil
}

// Remove deletes an occupant. Irreversible from the engine's perspective.
func (s *Sequencer) Remove(occupants []domain.TankItem, instanceID string) ([]domain.TankItem, error) {
	idx := indexOf(occupants, instanceID)
	if idx < 0 {
		return occupants, domain.ErrNotFound{Kind: "occupant", ID: instanceID}
	}
	next := make([]domain.TankItem, 0, len(occupants)-1)
	next = append(next, occupants[:idx]...)
	return append(next, occupants[idx+1:]...), nil
}

func indexOf(occupants []domain.TankItem, instanceID string) int {
	for i, t := range occupants {
		if t.InstanceID == instanceID {
			return i
		}
	}
	return -1
}

func defaultNickname(sp domain.Species) string {
	if sp.Name != "" {
		return sp.Name
	}
	return "New Fish"
}
