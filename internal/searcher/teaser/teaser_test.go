package teaser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		words []string
		count int
		want  string
	}{
		{"highlights match", "Coming soon!", []string{"coming"}, 30, "<em>Coming</em> soon!"},
		{"stem aware", "Schema Management overview", []string{"manage"}, 30, "Schema <em>Management</em> overview"},
		{"case insensitive query", "Coming soon!", []string{"SOON"}, 30, "Coming <em>soon!</em>"},
		{"no match keeps first window", "one two three four", []string{"zebra"}, 2, "one two"},
		{"no words", "one two three", nil, 2, "one two"},
		{"empty body", "", []string{"x"}, 30, ""},
		{"blank body", "   ", []string{"x"}, 30, "   "},
		{"escapes html", "a <b> c", []string{"c"}, 30, "a &lt;b&gt; <em>c</em>"},
		{"window moves to match", "one two three four five six target", []string{"target"}, 3, "five six <em>target</em>"},
		{"sentence boundaries kept", "aa bb. cc dd. ee target", []string{"target"}, 4, "cc dd. ee <em>target</em>"},
		{"last maximum wins", "target x target", []string{"target"}, 1, "<em>target</em>"},
		{"extra spaces preserved", "alpha  beta", []string{"beta"}, 30, "alpha  <em>beta</em>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.body, tt.words, tt.count))
		})
	}
}

func TestMake_WindowSize(t *testing.T) {
	body := "w1 w2 w3 w4 w5 w6 w7 w8 w9 w10"
	assert.Equal(t, "w1 w2 w3", Make(body, nil, 3))
	// a count larger than the body returns every word
	assert.Equal(t, body, Make(body, nil, 50))
	assert.Equal(t, body, Make(body, nil, 0))
}

func TestBestWindow(t *testing.T) {
	words := []weightedWord{{weight: 8}, {weight: 2}, {weight: 40}, {weight: 2}, {weight: 40}}
	assert.Equal(t, 3, bestWindow(words, 2))
	assert.Equal(t, 2, bestWindow(words, 3))
}
