package htmltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "plain paragraph",
			html: "<p>Hello world</p>",
			want: "Hello world",
		},
		{
			name: "inline formatting stripped",
			html: "<p>Hello <strong>brave</strong> <em>new</em> world</p>",
			want: "Hello brave new world",
		},
		{
			name: "links keep their text",
			html: `<p>See <a href="https://example.com">the docs</a> for more</p>`,
			want: "See the docs for more",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ToText(tt.html))
		})
	}
}

func TestToTextPreservesParagraphBreaks(t *testing.T) {
	t.Parallel()

	text := ToText("<p>First paragraph.</p><p>Second paragraph.</p>")
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second paragraph.")
	assert.NotEqual(t, "First paragraph. Second paragraph.", text)
}

func TestWordCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want int
	}{
		{"simple", "<p>one two three</p>", 3},
		{"nested markup", "<div><p>one <b>two</b></p><p>three four</p></div>", 4},
		{"empty", "", 0},
		{"markup only", "<div><br/></div>", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, WordCount(tt.html))
		})
	}
}
