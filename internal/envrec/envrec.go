// Package envrec derives recommended environmental ranges from the occupant
// set: an admissible temperature interval, an oxygenation band, and the
// aggregate summary shown on overview surfaces. Recommendations are advisory;
// a conflict never blocks the user from choosing an operating point.
package envrec

import (
	"gonum.org/v1/gonum/stat"

	"aquacore/pkg/domain"
)

// TempRecommendation is the widest interval simultaneously satisfying every
// occupant that carries temperature data. Conflict means min exceeded max
// and no admissible value exists.
type TempRecommendation struct {
	Min      float64
	Max      float64
	Conflict bool
}

// Admits reports whether the operating point lies inside the recommended
// interval. A conflicting recommendation admits nothing.
func (r TempRecommendation) Admits(point float64) bool {
	return !r.Conflict && point >= r.Min && point <= r.Max
}

// Temperature intersects occupant temperature ranges: min is the largest of
// the occupant minimums, max the smallest of the maximums. Returns nil when
// no occupant carries temperature data.
func Temperature(occupants []domain.TankItem) *TempRecommendation {
	var rec *TempRecommendation
	for _, t := range occupants {
		r := t.TempRange
		if r == nil {
			continue
		}
		if rec == nil {
			rec = &TempRecommendation{Min: r.Min, Max: r.Max}
			continue
		}
		if r.Min > rec.Min {
			rec.Min = r.Min
		}
		if r.Max < rec.Max {
			rec.Max = r.Max
		}
	}
	if rec != nil {
		rec.Conflict = rec.Min > rec.Max
	}
	return rec
}

// OxygenLabel is the categorical oxygenation verdict for the occupant set.
type OxygenLabel string

const (
	OxygenLow      OxygenLabel = "low"
	OxygenMedium   OxygenLabel = "medium"
	OxygenHigh     OxygenLabel = "high"
	OxygenConflict OxygenLabel = "conflict"
)

// oxygenBands maps each label to its fixed percentage band. The bands
// deliberately overlap so borderline operating points do not flip-flop
// between verdicts.
var oxygenBands = map[OxygenLabel]domain.Range{
	OxygenLow:    {Min: 30, Max: 55},
	OxygenMedium: {Min: 45, Max: 75},
	OxygenHigh:   {Min: 65, Max: 90},
}

// OxygenRecommendation carries the voted label and its band. Range is nil
// only for a conflict.
type OxygenRecommendation struct {
	Label OxygenLabel
	Range *domain.Range
}

// Oxygen votes over occupant oxygen needs: high and low together conflict,
// any high wins high, an all-low non-empty set wins low, everything else is
// medium. Occupants without oxygen data count toward neither extreme but do
// break an all-low vote.
func Oxygen(occupants []domain.TankItem) OxygenRecommendation {
	label := oxygenVote(occupants)
	if label == OxygenConflict {
		return OxygenRecommendation{Label: label}
	}
	band := oxygenBands[label]
	return OxygenRecommendation{Label: label, Range: &band}
}

func oxygenVote(occupants []domain.TankItem) OxygenLabel {
	var anyHigh, anyLow bool
	allLow := len(occupants) > 0
	for _, t := range occupants {
		switch t.OxygenNeed {
		case domain.OxygenHigh:
			anyHigh = true
			allLow = false
		case domain.OxygenLow:
			anyLow = true
		default:
			allLow = false
		}
	}
	switch {
	case anyHigh && anyLow:
		return OxygenConflict
	case anyHigh:
		return OxygenHigh
	case allLow:
		return OxygenLow
	default:
		return OxygenMedium
	}
}

// Summary aggregates the occupant set for overview rendering. Averages are
// over midpoints of the ranges that exist; nil means no occupant carried
// that measurement.
type Summary struct {
	SpeciesCount int
	AvgTemp      *float64
	AvgPH        *float64
	OxygenStatus OxygenLabel
}

// Summarize computes the overview summary. Occupants without a given range
// are excluded from that average rather than counted as zero.
func Summarize(occupants []domain.TankItem) Summary {
	s := Summary{SpeciesCount: len(occupants), OxygenStatus: oxygenVote(occupants)}

	var temps, phs []float64
	for _, t := range occupants {
		if t.TempRange != nil {
			temps = append(temps, t.TempRange.Mid())
		}
		if t.PHRange != nil {
			phs = append(phs, t.PHRange.Mid())
		}
	}
	if len(temps) > 0 {
		m := stat.Mean(temps, nil)
		s.AvgTemp = &m
	}
	if len(phs) > 0 {
		m := stat.Mean(phs, nil)
		s.AvgPH = &m
	}
	return s
}
