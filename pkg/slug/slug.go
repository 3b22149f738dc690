// Package slug produces the canonical lowercase-dash identifiers used for
// species equality across naming variants ("Betta Fish", "betta", "BETTA"
// and an asset key "betta" all canonicalize to the same slug).
package slug

import (
	"regexp"
	"strings"
)

var (
	camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)
	nonAlnumRun   = regexp.MustCompile(`[^a-z0-9]+`)
	edgeDashes    = regexp.MustCompile(`^-+|-+$`)
)

// Make converts arbitrary free text into a canonical slug: lowercase
// alphanumerics separated by single dashes, with no leading or trailing dash.
// It is total and idempotent; empty or fully non-alphanumeric input yields "".
func Make(text string) string {
	s := camelBoundary.ReplaceAllString(strings.TrimSpace(text), "$1-$2")
	s = strings.ToLower(s)
	s = nonAlnumRun.ReplaceAllString(s, "-")
	return edgeDashes.ReplaceAllString(s, "")
}

// Identifiable is anything that can be resolved to a canonical identifier.
// The resolution priority is load-bearing: an explicit asset key beats the
// species back-reference, which beats the primary id, which beats the display
// name. This is what lets multiple placed instances of the same catalog
// species, and legacy records missing some fields, compare equal.
type Identifiable interface {
	AssetKeyHint() string
	SpeciesRef() string
	PrimaryID() string
	DisplayName() string
}

// CanonicalID resolves the best available identifier for e and canonicalizes it.
func CanonicalID(e Identifiable) string {
	for _, candidate := range []string{e.AssetKeyHint(), e.SpeciesRef(), e.PrimaryID(), e.DisplayName()} {
		if candidate != "" {
			return Make(candidate)
		}
	}
	return ""
}
