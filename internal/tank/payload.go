package tank

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"aquacore/pkg/domain"
)

// BuildPersistPayload serializes the occupant collection and settings into
// the persisted document layout. Occupants are partitioned into the legacy
// fish and plants arrays and duplicated into the items map keyed by instance
// id; the map is authoritative on read, the arrays are kept in sync for
// older readers. The result has passed StripNilDeep, because the store
// rejects documents containing nil values.
func BuildPersistPayload(occupants []domain.TankItem, settings domain.TankSettings) domain.Document {
	fish := make([]any, 0)
	plants := make([]any, 0)
	items := make(map[string]any, len(occupants))
	for _, t := range occupants {
		rec := serializeItem(t)
		items[t.InstanceID] = rec
		if t.Kind == domain.KindFish {
			fish = append(fish, rec)
		} else {
			plants = append(plants, rec)
		}
	}
	doc := domain.Document{
		"settings": map[string]any{
			"env":           string(settings.Env),
			"temp":          settings.Temp,
			"oxy":           settings.Oxy,
			"backgroundKey": settings.BackgroundKey,
		},
		"fish":   fish,
		"plants": plants,
		"items":  items,
	}
	return StripNilDeep(doc).(domain.Document)
}

// serializeItem persists identity, position, naming, asset references, and
// the species' environmental profile. The profile rides along so a rehydrated
// occupant can still drive compatibility and recommendation checks without a
// catalog lookup. Optional fields are omitted when empty.
func serializeItem(t domain.TankItem) map[string]any {
	rec := map[string]any{
		"instanceId": t.InstanceID,
		"id":         t.ID,
		"name":       t.Name,
		"kind":       string(t.Kind),
		"type":       string(t.WaterType),
		"x":          t.X,
		"y":          t.Y,
	}
	if t.Nickname != "" {
		rec["nickname"] = t.Nickname
	}
	if t.AssetKey != "" {
		rec["assetKey"] = t.AssetKey
	}
	if t.ImageURL != "" {
		rec["imageURL"] = t.ImageURL
	}
	if t.SpeciesID != "" {
		rec["speciesId"] = t.SpeciesID
	}
	if t.TempRange != nil {
		rec["temp"] = map[string]any{"min": t.TempRange.Min, "max": t.TempRange.Max}
	}
	if t.PHRange != nil {
		rec["ph"] = map[string]any{"min": t.PHRange.Min, "max": t.PHRange.Max}
	}
	if t.OxygenNeed != "" {
		rec["oxygenNeed"] = string(t.OxygenNeed)
	}
	if len(t.IncompatibleWith) > 0 {
		incompat := make([]any, 0, len(t.IncompatibleWith))
		for _, id := range t.IncompatibleWith {
			incompat = append(incompat, id)
		}
		rec["incompatibleWith"] = incompat
	}
	return rec
}

// StripNilDeep removes nil-valued keys from nested maps and recurses into
// slices. The document store treats nil values as malformed, so every
// payload passes through here before a write.
func StripNilDeep(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return stripMap(t)
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if e == nil {
				continue
			}
			out = append(out, StripNilDeep(e))
		}
		return out
	}
	return v
}

func stripMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = StripNilDeep(v)
	}
	return out
}

// Hydrate rebuilds settings and the occupant collection from a persisted
// document. It is total: missing settings fall back to defaults, the items
// map is preferred over the legacy fish and plants arrays, and the species
// back-reference is recovered from a composite "speciesId::instanceId" id
// when the explicit field is absent. Occupants hydrated from the items map
// come back in instance id order.
func Hydrate(doc domain.Document) (domain.TankSettings, []domain.TankItem) {
	settings := domain.DefaultSettings()
	if raw, ok := doc["settings"].(map[string]any); ok {
		if env, ok := raw["env"].(string); ok && env != "" {
			settings.Env = domain.WaterType(env)
		}
		if temp, ok := toFloat(raw["temp"]); ok {
			settings.Temp = temp
		}
		if oxy, ok := toFloat(raw["oxy"]); ok {
			settings.Oxy = oxy
		}
		if bg, ok := raw["backgroundKey"].(string); ok && bg != "" {
			settings.BackgroundKey = bg
		}
	}

	merged := collectItemRecords(doc)
	occupants := make([]domain.TankItem, 0, len(merged))
	for i, rec := range merged {
		occupants = append(occupants, hydrateItem(rec, i))
	}
	return settings, occupants
}

// collectItemRecords prefers the authoritative items map, sorted by key for
// a stable order, and falls back to the legacy arrays. Legacy fields are
// tolerated in object form as well, a shape older writers produced.
func collectItemRecords(doc domain.Document) []map[string]any {
	if dict, ok := doc["items"].(map[string]any); ok && len(dict) > 0 {
		keys := make([]string, 0, len(dict))
		for k := range dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]map[string]any, 0, len(keys))
		for _, k := range keys {
			if rec, ok := dict[k].(map[string]any); ok {
				out = append(out, rec)
			}
		}
		return out
	}

	var out []map[string]any
	for _, field := range []string{"fish", "plants"} {
		switch v := doc[field].(type) {
		case []any:
			for _, e := range v {
				if rec, ok := e.(map[string]any); ok {
					out = append(out, rec)
				}
			}
		case map[string]any:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if rec, ok := v[k].(map[string]any); ok {
					out = append(out, rec)
				}
			}
		}
	}
	return out
}

func hydrateItem(rec map[string]any, i int) domain.TankItem {
	rawID, _ := rec["id"].(string)
	if rawID == "" {
		rawID = fmt.Sprintf("item-%d", i)
	}

	speciesID, _ := rec["speciesId"].(string)
	var compositeInstance string
	if before, after, found := strings.Cut(rawID, "::"); found {
		if speciesID == "" {
			speciesID = before
		}
		compositeInstance = after
	} else if speciesID == "" {
		speciesID = rawID
	}

	instanceID, _ := rec["instanceId"].(string)
	if instanceID == "" {
		instanceID = compositeInstance
	}
	if instanceID == "" {
		instanceID = fmt.Sprintf("%s-%d-%s", speciesID, i, uuid.NewString()[:8])
	}

	item := domain.TankItem{
		Species: domain.Species{
			ID:               rawID,
			Name:             stringOr(rec["name"], "Unknown"),
			Kind:             domain.SpeciesKind(stringOr(rec["kind"], string(domain.KindFish))),
			WaterType:        domain.WaterType(stringOr(rec["type"], string(domain.Freshwater))),
			AssetKey:         stringOr(rec["assetKey"], ""),
			ImageURL:         stringOr(rec["imageURL"], ""),
			TempRange:        rangeFrom(rec["temp"]),
			PHRange:          rangeFrom(rec["ph"]),
			OxygenNeed:       domain.OxygenNeed(stringOr(rec["oxygenNeed"], "")),
			IncompatibleWith: stringsFrom(rec["incompatibleWith"]),
		},
		InstanceID: instanceID,
		SpeciesID:  speciesID,
		Nickname:   stringOr(rec["nickname"], ""),
	}

	// Records missing coordinates are fanned out over a small grid so they
	// do not stack at the origin.
	if x, ok := toFloat(rec["x"]); ok {
		item.X = x
	} else {
		item.X = float64(20 + (i*10)%120)
	}
	if y, ok := toFloat(rec["y"]); ok {
		item.Y = y
	} else {
		item.Y = float64(20 + (i*12)%90)
	}
	return item
}

// rangeFrom reads a persisted {min,max} object. Records written before the
// environmental profile was persisted hydrate to nil, same as a catalog
// entry without the field.
func rangeFrom(v any) *domain.Range {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	min, okMin := toFloat(m["min"])
	max, okMax := toFloat(m["max"])
	if !okMin || !okMax {
		return nil
	}
	return &domain.Range{Min: min, Max: max}
}

// stringsFrom tolerates both the []any shape a JSON round trip produces and
// the []string shape an in-memory document keeps.
func stringsFrom(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
