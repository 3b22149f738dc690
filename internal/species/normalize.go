// Package species normalizes raw catalog records into canonical
// domain.Species values. Catalog sources are loosely typed: ranges arrive as
// bare numbers, ordered pairs, or {min,max} objects; field names vary in
// casing; incompatibility lists arrive as arrays, delimited strings, or keyed
// objects. Normalize is total over any map-shaped input and never fails.
package species

import (
	"encoding/json"
	"sort"
	"strings"

	"aquacore/pkg/domain"
	"aquacore/pkg/slug"
)

// Normalize converts a raw catalog record into a canonical Species. Missing
// or malformed fields degrade to documented defaults: water type defaults to
// freshwater, absent ranges stay nil rather than zero, and the asset key
// falls back to the canonicalized name or id.
func Normalize(raw map[string]any) domain.Species {
	sp := domain.Species{
		ID:       asString(raw["id"]),
		Name:     asString(raw["name"]),
		Kind:     normalizeKind(raw["kind"]),
		AssetKey: asString(raw["assetKey"]),
		ImageURL: asString(raw["imageURL"]),
	}

	sp.WaterType = normalizeWaterType(firstPresent(raw, "type", "waterType"))
	sp.PHRange = coerceRange(firstPresent(raw, "ph", "pH", "Ph", "PH"))
	sp.TempRange = coerceRange(raw["temp"])
	sp.OxygenNeed = normalizeOxygen(raw["oxygenNeed"])
	sp.IncompatibleWith = coerceIncompatible(raw["incompatibleWith"])

	if sp.AssetKey == "" {
		if sp.Name != "" {
			sp.AssetKey = slug.Make(sp.Name)
		} else {
			sp.AssetKey = slug.Make(sp.ID)
		}
	}
	return sp
}

// firstPresent returns the first non-nil value among the named keys.
func firstPresent(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// asFloat widens the numeric types that JSON, YAML, and CSV decoders produce.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// coerceRange accepts a bare number (min == max), a two-element ordered pair,
// or a {min,max} object. Anything else yields nil.
func coerceRange(v any) *domain.Range {
	if v == nil {
		return nil
	}
	if n, ok := asFloat(v); ok {
		return &domain.Range{Min: n, Max: n}
	}
	switch t := v.(type) {
	case []any:
		if len(t) < 2 {
			return nil
		}
		min, okMin := asFloat(t[0])
		max, okMax := asFloat(t[1])
		if !okMin || !okMax {
			return nil
		}
		return &domain.Range{Min: min, Max: max}
	case map[string]any:
		min, okMin := asFloat(t["min"])
		max, okMax := asFloat(t["max"])
		if !okMin || !okMax {
			return nil
		}
		return &domain.Range{Min: min, Max: max}
	}
	return nil
}

func normalizeKind(v any) domain.SpeciesKind {
	switch strings.ToLower(asString(v)) {
	case "fish":
		return domain.KindFish
	case "plant":
		return domain.KindPlant
	}
	return ""
}

// normalizeWaterType maps free-form input onto the two canonical water
// types: strings whose whitespace-stripped lowercase form starts with "salt"
// or "marine" are saltwater, everything else is freshwater.
func normalizeWaterType(v any) domain.WaterType {
	s := strings.ToLower(asString(v))
	s = strings.Join(strings.Fields(s), "")
	if strings.HasPrefix(s, "salt") || strings.HasPrefix(s, "marine") {
		return domain.Saltwater
	}
	return domain.Freshwater
}

func normalizeOxygen(v any) domain.OxygenNeed {
	switch strings.ToLower(asString(v)) {
	case "low":
		return domain.OxygenLow
	case "medium":
		return domain.OxygenMedium
	case "high":
		return domain.OxygenHigh
	}
	return ""
}

var incompatSplitter = strings.NewReplacer(";", ",", "\n", ",")

// coerceIncompatible normalizes the three source shapes of the
// incompatibility field into a deduplicated list of canonical slugs. Arrays
// pass through element-wise, strings are split on comma, semicolon, or
// newline, and keyed objects contribute their values.
func coerceIncompatible(v any) []string {
	var entries []string
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		for _, e := range t {
			entries = append(entries, asString(e))
		}
	case []string:
		entries = t
	case string:
		entries = strings.Split(incompatSplitter.Replace(t), ",")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			entries = append(entries, asString(t[k]))
		}
	default:
		return []string{}
	}

	out := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		s := slug.Make(e)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
