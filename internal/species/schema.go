package species

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// rawSchema describes the shapes a catalog record is allowed to take before
// normalization. It is deliberately permissive: every field the normalizer
// tolerates is legal here, and validation is advisory only.
const rawSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string"},
    "kind": {"type": "string"},
    "type": {"type": "string"},
    "waterType": {"type": "string"},
    "ph": {"$ref": "#/$defs/range"},
    "pH": {"$ref": "#/$defs/range"},
    "temp": {"$ref": "#/$defs/range"},
    "oxygenNeed": {"type": "string"},
    "assetKey": {"type": "string"},
    "imageURL": {"type": "string"},
    "incompatibleWith": {
      "anyOf": [
        {"type": "array", "items": {"type": "string"}},
        {"type": "string"},
        {"type": "object", "additionalProperties": {"type": "string"}}
      ]
    }
  },
  "$defs": {
    "range": {
      "anyOf": [
        {"type": "number"},
        {"type": "array", "items": {"type": "number"}, "minItems": 2, "maxItems": 2},
        {
          "type": "object",
          "properties": {"min": {"type": "number"}, "max": {"type": "number"}},
          "required": ["min", "max"]
        }
      ]
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("species.schema.json", rawSchema)

// ValidateRaw checks a raw catalog record against the permissive species
// schema. Normalization does not depend on it; callers use the returned error
// only to log suspect catalog entries.
func ValidateRaw(raw map[string]any) error {
	// Round-trip through JSON so records decoded from YAML or CSV (which
	// carry int and other non-JSON types) validate the same as JSON input.
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return compiledSchema.Validate(v)
}
