// Package compat evaluates whether a candidate species can join the current
// occupant set. Evaluation is restricted to declared hard rules plus a small
// self-avoidance allowlist of species known to be aggressive toward
// conspecifics; it makes no general biological inference. Conflicts are
// advisory: placement is never hard-blocked and the caller decides whether
// to let the user override.
package compat

import (
	"fmt"

	"aquacore/pkg/domain"
	"aquacore/pkg/slug"
)

// Verdict is the quick two-state compatibility label used for catalog
// browsing.
type Verdict string

const (
	Good  Verdict = "Good"
	Avoid Verdict = "Avoid"
)

// DefaultSelfAvoid lists the canonical ids of species that must not share a
// tank with their own kind.
func DefaultSelfAvoid() []string { return []string{"betta"} }

// Evaluator holds the self-avoidance set. The zero value is not usable;
// construct with NewEvaluator.
type Evaluator struct {
	selfAvoid map[string]struct{}
}

// NewEvaluator builds an Evaluator with the given self-avoidance canonical
// ids. Passing no ids yields the default set.
func NewEvaluator(selfAvoid ...string) *Evaluator {
	if len(selfAvoid) == 0 {
		selfAvoid = DefaultSelfAvoid()
	}
	set := make(map[string]struct{}, len(selfAvoid))
	for _, id := range selfAvoid {
		set[slug.Make(id)] = struct{}{}
	}
	return &Evaluator{selfAvoid: set}
}

// explicitlyIncompatible reports a declared hard rule in either direction:
// a listing b's canonical id, or b listing a's, both count.
func explicitlyIncompatible(a, b slug.Identifiable, aList, bList []string) bool {
	aID := slug.CanonicalID(a)
	bID := slug.CanonicalID(b)
	return contains(aList, bID) || contains(bList, aID)
}

func contains(list []string, id string) bool {
	if id == "" {
		return false
	}
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// Quick returns the two-state label for a candidate against the occupant
// set: Avoid when the candidate is a self-avoid species already present, or
// when any occupant is explicitly incompatible in either direction.
func (e *Evaluator) Quick(candidate domain.Species, occupants []domain.TankItem) Verdict {
	if len(occupants) == 0 {
		return Good
	}
	candID := slug.CanonicalID(candidate)
	if _, avoid := e.selfAvoid[candID]; avoid {
		for _, t := range occupants {
			if slug.CanonicalID(t) == candID {
				return Avoid
			}
		}
	}
	for _, t := range occupants {
		if explicitlyIncompatible(candidate, t, candidate.IncompatibleWith, t.IncompatibleWith) {
			return Avoid
		}
	}
	return Good
}

// Conflicts enumerates the advisory conflict messages for placing candidate
// into a tank configured for targetEnv: one message per self-avoidance
// collision, one per explicitly incompatible occupant, then a water-type
// mismatch message when the candidate's water type differs from the tank
// environment. An empty list means no objection.
func (e *Evaluator) Conflicts(candidate domain.Species, occupants []domain.TankItem, targetEnv domain.WaterType) []string {
	msgs := []string{}
	candID := slug.CanonicalID(candidate)

	if _, avoid := e.selfAvoid[candID]; avoid {
		for _, t := range occupants {
			if slug.CanonicalID(t) == candID {
				msgs = append(msgs, fmt.Sprintf("%s - another %s is already in the tank", t.DisplayLabel(), candidate.Name))
			}
		}
	}

	for _, t := range occupants {
		if explicitlyIncompatible(candidate, t, candidate.IncompatibleWith, t.IncompatibleWith) {
			msgs = append(msgs, fmt.Sprintf("%s - incompatible with %s", t.DisplayLabel(), candidate.Name))
		}
	}

	if candidate.WaterType != targetEnv {
		msgs = append(msgs, fmt.Sprintf("%s - is %s while environment is %s", candidate.Name, candidate.WaterType, targetEnv))
	}

	return msgs
}
