package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSrcset(t *testing.T) {
	tests := []struct {
		in   string
		want []candidate
	}{
		{"a.png", []candidate{{url: "a.png"}}},
		{"a.png 1x, b.png 2x", []candidate{{"a.png", "1x"}, {"b.png", "2x"}}},
		{"a.png,b.png", []candidate{{url: "a.png,b.png"}}},
		{"a.png, b.png", []candidate{{url: "a.png"}, {url: "b.png"}}},
		{"  small.jpg   480w ,\n large.jpg 1080w  ", []candidate{{"small.jpg", "480w"}, {"large.jpg", "1080w"}}},
		{"data:image/png;base64,AA== 1x, b.png 2x", []candidate{{"data:image/png;base64,AA==", "1x"}, {"b.png", "2x"}}},
		{"a.png (max-width: 1px, x) 1x, b.png", []candidate{{"a.png", "(max-width: 1px, x) 1x"}, {url: "b.png"}}},
		{"", nil},
		{" , , ", nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseSrcset(tt.in), tt.in)
	}
}

func TestSrcset(t *testing.T) {
	c := newTestContext(t, "https://example.com/gallery/")

	out, ok := c.Srcset("small.jpg 480w, /large.jpg 1080w")
	require.True(t, ok)
	assert.Equal(t,
		proxied("https://example.com/gallery/small.jpg")+" 480w, "+proxied("https://example.com/large.jpg")+" 1080w",
		out)
}

func TestSrcsetKeepsSkippedCandidates(t *testing.T) {
	c := newTestContext(t, "https://example.com/")

	out, ok := c.Srcset("data:image/gif;base64,R0lG 1x, b.png 2x")
	require.True(t, ok)
	assert.Equal(t, "data:image/gif;base64,R0lG 1x, "+proxied("https://example.com/b.png")+" 2x", out)

	in := "https://cdnjs.cloudflare.com/a.png 1x"
	out, ok = c.Srcset(in)
	assert.False(t, ok)
	assert.Equal(t, in, out)
}
