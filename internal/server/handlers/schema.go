package handlers

import (
	"github.com/invopop/jsonschema"

	"github.com/maruel/rowcache/cache"
)

// tableSchema describes a row of t as a JSON object with one property per
// column, in column order.
func tableSchema(t *cache.Table) *jsonschema.Schema {
	kinds := map[string]cache.Kind{}
	for _, e := range t.Entries() {
		if _, ok := kinds[e.Column]; !ok && !e.Value.IsNull() {
			kinds[e.Column] = e.Value.Kind()
		}
	}
	s := &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                t.Name(),
		Type:                 "object",
		Properties:           jsonschema.NewProperties(),
		AdditionalProperties: jsonschema.FalseSchema,
	}
	for _, c := range t.Columns() {
		s.Properties.Set(c, columnSchema(kinds[c]))
	}
	return s
}

func columnSchema(k cache.Kind) *jsonschema.Schema {
	switch k {
	case cache.KindString:
		return &jsonschema.Schema{Type: "string"}
	case cache.KindInt:
		return &jsonschema.Schema{Type: "integer"}
	case cache.KindFloat:
		return &jsonschema.Schema{Type: "number"}
	case cache.KindBool:
		return &jsonschema.Schema{Type: "boolean"}
	case cache.KindDate:
		return &jsonschema.Schema{Type: "string", Format: "date"}
	case cache.KindTimestamp:
		return &jsonschema.Schema{Type: "string", Format: "date-time"}
	case cache.KindUUID:
		return &jsonschema.Schema{Type: "string", Format: "uuid"}
	default:
		return &jsonschema.Schema{}
	}
}
