package searchindex

import (
	"log/slog"
	"strings"
)

// Combination modes for query tokens within a field.
const (
	BoolOR  = "OR"
	BoolAND = "AND"
)

// SearchOptions is the search_options block of the index. Field entries
// leave Boost, Bool and Expand unset to inherit the defaults.
type SearchOptions struct {
	Bool   string                  `json:"bool,omitempty"`
	Expand bool                    `json:"expand"`
	Fields map[string]FieldOptions `json:"fields,omitempty"`
}

// FieldOptions overrides search behaviour for a single field.
type FieldOptions struct {
	Boost  *float64 `json:"boost,omitempty"`
	Bool   string   `json:"bool,omitempty"`
	Expand *bool    `json:"expand,omitempty"`
}

// FieldConfig is the effective configuration for one searched field.
type FieldConfig struct {
	Name   string
	Boost  float64
	Bool   string
	Expand bool
}

// Resolve applies the defaulting rules against the index's fields. With no
// field entries every field is searched with boost 1; otherwise only the
// listed fields that exist in the index are. Missing boosts default to 1 and
// missing bool/expand values inherit the global ones. The result follows the
// order of fields.
func (o SearchOptions) Resolve(fields []string) []FieldConfig {
	global := normalizeBool(o.Bool)
	if global == "" {
		global = BoolOR
	}

	if len(o.Fields) == 0 {
		out := make([]FieldConfig, 0, len(fields))
		for _, f := range fields {
			out = append(out, FieldConfig{Name: f, Boost: 1, Bool: global, Expand: o.Expand})
		}
		return out
	}

	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f] = true
	}
	for name := range o.Fields {
		if !known[name] {
			slog.Warn("search option names a field that is not indexed", "field", name)
		}
	}

	out := make([]FieldConfig, 0, len(o.Fields))
	for _, f := range fields {
		fo, ok := o.Fields[f]
		if !ok {
			continue
		}
		fc := FieldConfig{Name: f, Boost: 1, Bool: global, Expand: o.Expand}
		if fo.Boost != nil {
			fc.Boost = *fo.Boost
		}
		if b := normalizeBool(fo.Bool); b != "" {
			fc.Bool = b
		}
		if fo.Expand != nil {
			fc.Expand = *fo.Expand
		}
		out = append(out, fc)
	}
	return out
}

func normalizeBool(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case BoolAND:
		return BoolAND
	case BoolOR:
		return BoolOR
	}
	return ""
}
