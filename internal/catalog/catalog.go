// Package catalog loads raw species records from YAML or CSV sources and
// runs them through the normalizer. The catalog is read-only to the rest of
// the engine; sessions filter it by the tank's water environment.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"aquacore/internal/species"
	"aquacore/pkg/domain"
)

// LoadYAML reads a YAML list of raw species records. Records that fail the
// advisory schema check are logged and still normalized; normalization is
// total, so a malformed record degrades instead of aborting the load.
func LoadYAML(path string, log *slog.Logger) ([]domain.Species, error) {
	if log == nil {
		log = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var raws []map[string]any
	if err := yaml.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return normalizeAll(raws, path, log), nil
}

// csvRecord is one row of a CSV catalog. Cells stay strings so empty cells
// can mean "absent" rather than zero.
type csvRecord struct {
	ID               string `csv:"id"`
	Name             string `csv:"name"`
	Kind             string `csv:"kind"`
	Type             string `csv:"type"`
	PHMin            string `csv:"ph_min"`
	PHMax            string `csv:"ph_max"`
	TempMin          string `csv:"temp_min"`
	TempMax          string `csv:"temp_max"`
	OxygenNeed       string `csv:"oxygen_need"`
	AssetKey         string `csv:"asset_key"`
	ImageURL         string `csv:"image_url"`
	IncompatibleWith string `csv:"incompatible_with"`
}

// LoadCSV reads a CSV catalog. Ranges come from min/max column pairs; a
// lone min doubles as a point value. The incompatibility cell is a
// semicolon-delimited string handled by the normalizer.
func LoadCSV(path string, log *slog.Logger) ([]domain.Species, error) {
	if log == nil {
		log = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var rows []csvRecord
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	raws := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		raws = append(raws, row.toRaw())
	}
	return normalizeAll(raws, path, log), nil
}

func (r csvRecord) toRaw() map[string]any {
	raw := map[string]any{}
	put := func(key, v string) {
		if strings.TrimSpace(v) != "" {
			raw[key] = strings.TrimSpace(v)
		}
	}
	put("id", r.ID)
	put("name", r.Name)
	put("kind", r.Kind)
	put("type", r.Type)
	put("oxygenNeed", r.OxygenNeed)
	put("assetKey", r.AssetKey)
	put("imageURL", r.ImageURL)
	put("incompatibleWith", r.IncompatibleWith)
	if rng := cellRange(r.PHMin, r.PHMax); rng != nil {
		raw["ph"] = rng
	}
	if rng := cellRange(r.TempMin, r.TempMax); rng != nil {
		raw["temp"] = rng
	}
	return raw
}

func cellRange(minCell, maxCell string) any {
	min, okMin := parseCell(minCell)
	max, okMax := parseCell(maxCell)
	switch {
	case okMin && okMax:
		return []any{min, max}
	case okMin:
		return min
	case okMax:
		return max
	}
	return nil
}

func parseCell(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cell, 64)
	return f, err == nil
}

func normalizeAll(raws []map[string]any, source string, log *slog.Logger) []domain.Species {
	out := make([]domain.Species, 0, len(raws))
	for i, raw := range raws {
		if err := species.ValidateRaw(raw); err != nil {
			log.Warn("catalog record failed schema check",
				slog.String("source", source), slog.Int("index", i), slog.Any("error", err))
		}
		out = append(out, species.Normalize(raw))
	}
	return out
}

// FilterByEnvironment returns the species tolerating the given water type,
// preserving catalog order.
func FilterByEnvironment(list []domain.Species, env domain.WaterType) []domain.Species {
	out := make([]domain.Species, 0, len(list))
	for _, sp := range list {
		if sp.WaterType == env {
			out = append(out, sp)
		}
	}
	return out
}
