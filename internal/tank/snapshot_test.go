package tank

import (
	"testing"
	"time"

	"aquacore/pkg/domain"
)

func TestBuildDisplaySnapshot(t *testing.T) {
	occupants := []domain.TankItem{
		{Species: domain.Species{PHRange: &domain.Range{Min: 6, Max: 7}}},
		{Species: domain.Species{PHRange: &domain.Range{Min: 7, Max: 8}}},
	}
	settings := domain.TankSettings{Env: domain.Saltwater, Temp: 25, Oxy: 65}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	snap := buildDisplaySnapshotAt(occupants, settings, now)
	if snap.SpeciesCount != 2 || snap.Env != domain.Saltwater || snap.Temp != 25 || snap.Oxy != 65 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.AvgPhText != "7.00" {
		t.Fatalf("avgPhText = %q, want 7.00", snap.AvgPhText)
	}
	if !snap.Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v", snap.Timestamp)
	}
}

func TestBuildDisplaySnapshotNoPHData(t *testing.T) {
	snap := BuildDisplaySnapshot(nil, domain.DefaultSettings())
	if snap.AvgPhText != "No pH data" {
		t.Fatalf("avgPhText = %q", snap.AvgPhText)
	}
	if snap.Timestamp.IsZero() {
		t.Fatalf("timestamp not set")
	}
}
