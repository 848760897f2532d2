package openapi

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const maxSampleDepth = 6

// sample builds a representative value for ref. An explicit example wins over
// a default, and a default over the first enum value.
func sample(ref *openapi3.SchemaRef) (any, bool) {
	return sampleDepth(ref, 0, map[*openapi3.Schema]bool{})
}

func sampleDepth(ref *openapi3.SchemaRef, depth int, seen map[*openapi3.Schema]bool) (any, bool) {
	if ref == nil || ref.Value == nil || depth > maxSampleDepth {
		return nil, false
	}
	s := ref.Value
	if v, ok := declared(s); ok {
		return v, true
	}
	if seen[s] {
		return nil, false
	}
	seen[s] = true
	defer delete(seen, s)

	if len(s.AllOf) > 0 {
		merged := map[string]any{}
		for _, part := range s.AllOf {
			v, ok := sampleDepth(part, depth+1, seen)
			if obj, isObj := v.(map[string]any); ok && isObj {
				maps.Copy(merged, obj)
			}
		}
		if len(merged) > 0 {
			return merged, true
		}
	}
	for _, alts := range []openapi3.SchemaRefs{s.OneOf, s.AnyOf} {
		if len(alts) > 0 {
			return sampleDepth(alts[0], depth+1, seen)
		}
	}

	switch schemaType(s) {
	case "object":
		obj := map[string]any{}
		for _, name := range slices.Sorted(maps.Keys(s.Properties)) {
			if v, ok := sampleDepth(s.Properties[name], depth+1, seen); ok {
				obj[name] = v
			}
		}
		return obj, true
	case "array":
		if v, ok := sampleDepth(s.Items, depth+1, seen); ok {
			return []any{v}, true
		}
		return []any{}, true
	case "integer":
		return 0, true
	case "number":
		return 0.0, true
	case "boolean":
		return true, true
	case "string":
		return stringSample(s.Format), true
	}
	return nil, false
}

func declared(s *openapi3.Schema) (any, bool) {
	switch {
	case s.Example != nil:
		return s.Example, true
	case s.Default != nil:
		return s.Default, true
	case len(s.Enum) > 0:
		return s.Enum[0], true
	}
	return nil, false
}

func schemaType(s *openapi3.Schema) string {
	for _, t := range s.Type.Slice() {
		if t != "null" {
			return t
		}
	}
	switch {
	case len(s.Properties) > 0:
		return "object"
	case s.Items != nil:
		return "array"
	}
	return ""
}

func stringSample(format string) string {
	switch strings.ToLower(format) {
	case "date-time":
		return "2024-01-01T00:00:00Z"
	case "date":
		return "2024-01-01"
	case "uuid":
		return "00000000-0000-0000-0000-000000000000"
	case "email":
		return "user@example.com"
	case "uri", "url":
		return "https://example.com"
	case "binary", "byte":
		return ""
	}
	return "string"
}

// formatValue renders a sample as a single parameter value.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ",")
	case map[string]any:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
	return fmt.Sprint(v)
}
