package searchindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestSearchOptions_Resolve(t *testing.T) {
	fields := []string{"title", "body", "breadcrumbs"}

	tests := []struct {
		name string
		opts SearchOptions
		want []FieldConfig
	}{
		{
			name: "no field entries searches every field",
			opts: SearchOptions{},
			want: []FieldConfig{
				{Name: "title", Boost: 1, Bool: BoolOR},
				{Name: "body", Boost: 1, Bool: BoolOR},
				{Name: "breadcrumbs", Boost: 1, Bool: BoolOR},
			},
		},
		{
			name: "listed fields only, in index order",
			opts: SearchOptions{
				Bool:   "and",
				Expand: true,
				Fields: map[string]FieldOptions{
					"body":  {},
					"title": {Boost: ptr(2.0), Bool: "OR", Expand: ptr(false)},
				},
			},
			want: []FieldConfig{
				{Name: "title", Boost: 2, Bool: BoolOR, Expand: false},
				{Name: "body", Boost: 1, Bool: BoolAND, Expand: true},
			},
		},
		{
			name: "explicit zero boost is kept",
			opts: SearchOptions{Fields: map[string]FieldOptions{"body": {Boost: ptr(0.0)}}},
			want: []FieldConfig{{Name: "body", Boost: 0, Bool: BoolOR}},
		},
		{
			name: "unknown fields are ignored",
			opts: SearchOptions{Fields: map[string]FieldOptions{"author": {Boost: ptr(5.0)}}},
			want: []FieldConfig{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.Resolve(fields))
		})
	}
}

func TestSearchOptions_ResolveFixture(t *testing.T) {
	idx := loadFixture(t)
	got := idx.SearchOptions.Resolve(idx.Fields)

	assert.Equal(t, []FieldConfig{
		{Name: "title", Boost: 2, Bool: BoolOR, Expand: true},
		{Name: "body", Boost: 1, Bool: BoolOR, Expand: true},
		{Name: "breadcrumbs", Boost: 1, Bool: BoolOR, Expand: true},
	}, got)
}
