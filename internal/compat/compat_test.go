package compat

import (
	"strings"
	"testing"

	"aquacore/pkg/domain"
)

func fish(id, name string, incompat ...string) domain.Species {
	return domain.Species{
		ID: id, Name: name, Kind: domain.KindFish,
		WaterType: domain.Freshwater, IncompatibleWith: incompat,
	}
}

func placed(sp domain.Species, instance string) domain.TankItem {
	return domain.TankItem{Species: sp, InstanceID: instance, SpeciesID: sp.ID}
}

func TestQuickEmptyTankIsGood(t *testing.T) {
	e := NewEvaluator()
	if got := e.Quick(fish("betta", "Betta"), nil); got != Good {
		t.Fatalf("verdict = %q, want Good", got)
	}
}

func TestQuickSelfAvoid(t *testing.T) {
	e := NewEvaluator()
	betta := fish("betta", "Betta")
	occupants := []domain.TankItem{placed(betta, "i1")}

	if got := e.Quick(betta, occupants); got != Avoid {
		t.Fatalf("betta vs betta = %q, want Avoid", got)
	}
	// Non self-avoid duplicates are fine.
	guppy := fish("guppy", "Guppy")
	if got := e.Quick(guppy, []domain.TankItem{placed(guppy, "i2")}); got != Good {
		t.Fatalf("guppy vs guppy = %q, want Good", got)
	}
}

func TestQuickExplicitIncompatibilityEitherDirection(t *testing.T) {
	e := NewEvaluator()
	betta := fish("betta", "Betta", "guppy")
	guppy := fish("guppy", "Guppy")

	if got := e.Quick(betta, []domain.TankItem{placed(guppy, "i1")}); got != Avoid {
		t.Fatalf("declared by candidate: %q, want Avoid", got)
	}
	if got := e.Quick(guppy, []domain.TankItem{placed(betta, "i2")}); got != Avoid {
		t.Fatalf("declared by occupant: %q, want Avoid", got)
	}
}

func TestQuickMatchesAcrossNamingVariants(t *testing.T) {
	e := NewEvaluator()
	// Occupant identified only by display name still collides with the
	// candidate's declared slug.
	tetra := fish("", "Neon Tetra")
	angel := fish("angel1", "Angelfish", "neon-tetra")
	occupants := []domain.TankItem{{Species: tetra, InstanceID: "i1"}}
	if got := e.Quick(angel, occupants); got != Avoid {
		t.Fatalf("verdict = %q, want Avoid", got)
	}
}

func TestConflictsOrderingAndContent(t *testing.T) {
	e := NewEvaluator()
	betta := fish("betta", "Betta", "guppy")
	occupants := []domain.TankItem{
		func() domain.TankItem {
			it := placed(fish("betta", "Betta"), "i1")
			it.Nickname = "Bubbles"
			return it
		}(),
		placed(fish("guppy", "Guppy"), "i2"),
	}

	msgs := e.Conflicts(betta, occupants, domain.Saltwater)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3: %v", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "Bubbles") || !strings.Contains(msgs[0], "already in the tank") {
		t.Fatalf("self-avoid message wrong: %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "Guppy") || !strings.Contains(msgs[1], "incompatible") {
		t.Fatalf("incompatibility message wrong: %q", msgs[1])
	}
	if !strings.Contains(msgs[2], "freshwater") || !strings.Contains(msgs[2], "saltwater") {
		t.Fatalf("water mismatch message wrong: %q", msgs[2])
	}
}

func TestConflictsEmptyMeansNoObjection(t *testing.T) {
	e := NewEvaluator()
	guppy := fish("guppy", "Guppy")
	msgs := e.Conflicts(guppy, []domain.TankItem{placed(fish("tetra", "Tetra"), "i1")}, domain.Freshwater)
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %v", msgs)
	}
}

func TestCustomSelfAvoidSet(t *testing.T) {
	e := NewEvaluator("Dwarf Gourami")
	g := fish("dwarf-gourami", "Dwarf Gourami")
	if got := e.Quick(g, []domain.TankItem{placed(g, "i1")}); got != Avoid {
		t.Fatalf("custom self-avoid ignored: %q", got)
	}
	betta := fish("betta", "Betta")
	if got := e.Quick(betta, []domain.TankItem{placed(betta, "i2")}); got != Good {
		t.Fatalf("default set leaked into custom evaluator: %q", got)
	}
}
