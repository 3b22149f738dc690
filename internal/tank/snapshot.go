package tank

import (
	"fmt"
	"time"

	"aquacore/internal/envrec"
	"aquacore/pkg/domain"
)

// BuildDisplaySnapshot derives the cached overview summary from the occupant
// collection and the live environment controls, timestamped at creation.
func BuildDisplaySnapshot(occupants []domain.TankItem, settings domain.TankSettings) domain.TankSnapshot {
	return buildDisplaySnapshotAt(occupants, settings, time.Now())
}

func buildDisplaySnapshotAt(occupants []domain.TankItem, settings domain.TankSettings, now time.Time) domain.TankSnapshot {
	summary := envrec.Summarize(occupants)
	return domain.TankSnapshot{
		SpeciesCount: summary.SpeciesCount,
		Env:          settings.Env,
		Temp:         settings.Temp,
		Oxy:          settings.Oxy,
		AvgPhText:    FormatAvgPH(summary),
		Timestamp:    now,
	}
}

// FormatAvgPH renders the summary's average pH for display.
func FormatAvgPH(s envrec.Summary) string {
	if s.AvgPH == nil {
		return "No pH data"
	}
	return fmt.Sprintf("%.2f", *s.AvgPH)
}
