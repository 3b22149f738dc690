// Package domain defines the core entities, value types, and persistence
// contracts used by the aquacore engine.
package domain

import (
	"time"
)

// SpeciesKind identifies the variant of a catalog species.
type SpeciesKind string

// Supported species kinds. Fish are subject to self-avoidance and naming;
// plants are not.
const (
	KindFish  SpeciesKind = "fish"
	KindPlant SpeciesKind = "plant"
)

// WaterType identifies the water environment a species tolerates or a tank
// is configured for.
type WaterType string

// Canonical water types. Normalization maps every free-form input onto one
// of these two values.
const (
	Freshwater WaterType = "freshwater"
	Saltwater  WaterType = "saltwater"
)

// OxygenNeed is the categorical oxygenation requirement of a species.
// The zero value means the catalog record carries no oxygen data.
type OxygenNeed string

// Canonical oxygen needs.
const (
	OxygenLow    OxygenNeed = "low"
	OxygenMedium OxygenNeed = "medium"
	OxygenHigh   OxygenNeed = "high"
)

// Range is a closed numeric interval. A catalog record carrying a single
// number normalizes to Min == Max.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Mid returns the midpoint of the interval.
func (r Range) Mid() float64 { return (r.Min + r.Max) / 2 }

// Contains reports whether v lies inside the interval.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Species is a normalized catalog entity. It is owned by the external
// catalog collaborator and read-only to the engine: every Species reaching
// the engine has passed through the normalizer, so it has a non-empty
// canonical identifier, a defined water type, and an incompatibility list of
// canonical slugs (never raw names).
type Species struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Kind             SpeciesKind `json:"kind"`
	WaterType        WaterType   `json:"type"`
	PHRange          *Range      `json:"ph,omitempty"`
	TempRange        *Range      `json:"temp,omitempty"`
	OxygenNeed       OxygenNeed  `json:"oxygenNeed,omitempty"`
	AssetKey         string      `json:"assetKey,omitempty"`
	ImageURL         string      `json:"imageURL,omitempty"`
	IncompatibleWith []string    `json:"incompatibleWith"`
}

// AssetKeyHint implements slug.Identifiable.
func (s Species) AssetKeyHint() string { return s.AssetKey }

// SpeciesRef implements slug.Identifiable; catalog entries carry no
// back-reference of their own.
func (s Species) SpeciesRef() string { return "" }

// PrimaryID implements slug.Identifiable.
func (s Species) PrimaryID() string { return s.ID }

// DisplayName implements slug.Identifiable.
func (s Species) DisplayName() string { return s.Name }

// TankItem is a placed instance of a species inside a tank. The occupant
// collection holding TankItems is owned by the session that has the tank
// open; the engine takes the current collection and returns the next one,
// never retaining a copy between calls.
type TankItem struct {
	Species
	InstanceID string  `json:"instanceId"`
	SpeciesID  string  `json:"speciesId"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Nickname   string  `json:"nickname,omitempty"`
}

// SpeciesRef overrides the Species implementation: a placed item resolves
// through its catalog back-reference so instances of the same species
// compare equal even when their display IDs are composite.
func (t TankItem) SpeciesRef() string { return t.SpeciesID }

// DisplayLabel is the name shown for the occupant: the user nickname when
// set, otherwise the species name.
func (t TankItem) DisplayLabel() string {
	if t.Nickname != "" {
		return t.Nickname
	}
	return t.Name
}

// TankSettings holds the user-chosen environment controls for a tank.
type TankSettings struct {
	Env           WaterType `json:"env"`
	Temp          float64   `json:"temp"`
	Oxy           float64   `json:"oxy"`
	BackgroundKey string    `json:"backgroundKey"`
}

// DefaultSettings are applied to newly created tanks.
func DefaultSettings() TankSettings {
	return TankSettings{Env: Freshwater, Temp: 26, Oxy: 60, BackgroundKey: "default"}
}

// TankSnapshot is the derived, read-only summary cached for overview
// rendering. It is produced by the snapshot builder and never hand-edited.
type TankSnapshot struct {
	SpeciesCount int       `json:"speciesCount"`
	Env          WaterType `json:"env"`
	Temp         float64   `json:"temp"`
	Oxy          float64   `json:"oxy"`
	AvgPhText    string    `json:"avgPhText"`
	Timestamp    time.Time `json:"timestamp"`
}
