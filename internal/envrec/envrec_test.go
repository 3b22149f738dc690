package envrec

import (
	"math"
	"testing"

	"aquacore/pkg/domain"
)

func withTemp(min, max float64) domain.TankItem {
	return domain.TankItem{Species: domain.Species{TempRange: &domain.Range{Min: min, Max: max}}}
}

func withOxy(need domain.OxygenNeed) domain.TankItem {
	return domain.TankItem{Species: domain.Species{OxygenNeed: need}}
}

func TestTemperatureIntersection(t *testing.T) {
	rec := Temperature([]domain.TankItem{withTemp(24, 28), withTemp(26, 30)})
	if rec == nil || rec.Min != 26 || rec.Max != 28 || rec.Conflict {
		t.Fatalf("rec = %+v, want {26 28 false}", rec)
	}
	if !rec.Admits(27) || rec.Admits(25.9) || rec.Admits(28.1) {
		t.Fatalf("admissibility wrong for %+v", rec)
	}
}

func TestTemperatureConflict(t *testing.T) {
	rec := Temperature([]domain.TankItem{withTemp(24, 26), withTemp(28, 30)})
	if rec == nil || !rec.Conflict {
		t.Fatalf("rec = %+v, want conflict", rec)
	}
	if rec.Admits(27) {
		t.Fatalf("conflicting recommendation must admit nothing")
	}
}

func TestTemperatureNoData(t *testing.T) {
	if rec := Temperature(nil); rec != nil {
		t.Fatalf("rec = %+v, want nil", rec)
	}
	// Occupants without ranges are skipped, not treated as zero.
	rec := Temperature([]domain.TankItem{{}, withTemp(22, 26)})
	if rec == nil || rec.Min != 22 || rec.Max != 26 {
		t.Fatalf("rec = %+v, want {22 26 false}", rec)
	}
}

func TestOxygenVote(t *testing.T) {
	cases := []struct {
		name      string
		occupants []domain.TankItem
		label     OxygenLabel
		band      *domain.Range
	}{
		{"empty set is medium", nil, OxygenMedium, &domain.Range{Min: 45, Max: 75}},
		{"all low", []domain.TankItem{withOxy(domain.OxygenLow), withOxy(domain.OxygenLow)}, OxygenLow, &domain.Range{Min: 30, Max: 55}},
		{"any high", []domain.TankItem{withOxy(domain.OxygenMedium), withOxy(domain.OxygenHigh)}, OxygenHigh, &domain.Range{Min: 65, Max: 90}},
		{"high plus low conflicts", []domain.TankItem{withOxy(domain.OxygenHigh), withOxy(domain.OxygenLow)}, OxygenConflict, nil},
		{"unset breaks all-low", []domain.TankItem{withOxy(domain.OxygenLow), {}}, OxygenMedium, &domain.Range{Min: 45, Max: 75}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := Oxygen(tc.occupants)
			if rec.Label != tc.label {
				t.Fatalf("label = %q, want %q", rec.Label, tc.label)
			}
			if tc.band == nil {
				if rec.Range != nil {
					t.Fatalf("conflict must carry no band, got %+v", rec.Range)
				}
				return
			}
			if rec.Range == nil || *rec.Range != *tc.band {
				t.Fatalf("band = %+v, want %+v", rec.Range, tc.band)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	occupants := []domain.TankItem{
		{Species: domain.Species{
			TempRange:  &domain.Range{Min: 24, Max: 28},
			PHRange:    &domain.Range{Min: 6, Max: 7},
			OxygenNeed: domain.OxygenLow,
		}},
		{Species: domain.Species{
			TempRange:  &domain.Range{Min: 22, Max: 24},
			OxygenNeed: domain.OxygenLow,
		}},
	}
	s := Summarize(occupants)
	if s.SpeciesCount != 2 {
		t.Fatalf("speciesCount = %d", s.SpeciesCount)
	}
	if s.AvgTemp == nil || math.Abs(*s.AvgTemp-24.5) > 1e-9 {
		t.Fatalf("avgTemp = %v, want 24.5", s.AvgTemp)
	}
	// The occupant without pH data is excluded from the average.
	if s.AvgPH == nil || math.Abs(*s.AvgPH-6.5) > 1e-9 {
		t.Fatalf("avgPh = %v, want 6.5", s.AvgPH)
	}
	if s.OxygenStatus != OxygenLow {
		t.Fatalf("oxygenStatus = %q, want low", s.OxygenStatus)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.SpeciesCount != 0 || s.AvgTemp != nil || s.AvgPH != nil {
		t.Fatalf("unexpected summary for empty set: %+v", s)
	}
}
