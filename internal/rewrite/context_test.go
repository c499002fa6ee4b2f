package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextURL(t *testing.T) {
	c := newTestContext(t, "https://example.com/dir/page.html")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"root relative", "/style.css", "/api/proxy?url=https%3A%2F%2Fexample.com%2Fstyle.css"},
		{"path relative", "img/a.png", "/api/proxy?url=https%3A%2F%2Fexample.com%2Fdir%2Fimg%2Fa.png"},
		{"parent", "../up.js", proxied("https://example.com/up.js")},
		{"protocol relative", "//static.example.org/x.js", proxied("https://static.example.org/x.js")},
		{"absolute", "http://other.com/a?b=1&c=2", proxied("http://other.com/a?b=1&c=2")},
		{"surrounding space", "  /s.css ", proxied("https://example.com/s.css")},
		{"query only", "?page=2", proxied("https://example.com/dir/page.html?page=2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.URL(tt.raw)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContextURLSkips(t *testing.T) {
	c := newTestContext(t, "https://example.com/")

	skipped := []string{
		"",
		"   ",
		"#top",
		"data:image/png;base64,AAAA",
		"blob:https://example.com/123",
		"javascript:void(0)",
		"JavaScript:alert(1)",
		"mailto:someone@example.com",
		"tel:+100",
		"about:blank",
		"/api/proxy?url=https%3A%2F%2Fexample.com%2F",
		"http://proxy.local/loop",
		"https://proxy.local:8000/api/other",
		"https://cdnjs.cloudflare.com/ajax/libs/x.js",
		"https://cdn.jsdelivr.net/npm/y.js",
		"ftp://files.example.com/a",
		"http://[::1",
	}

	for _, raw := range skipped {
		got, ok := c.URL(raw)
		assert.False(t, ok, raw)
		assert.Equal(t, raw, got)
	}
}

func TestContextAttrURLUnescapes(t *testing.T) {
	c := newTestContext(t, "https://example.com/")

	got, ok := c.attrURL("/search?a=1&amp;b=2")
	require.True(t, ok)
	assert.Equal(t, proxied("https://example.com/search?a=1&b=2"), got)
}

func TestContextOrigin(t *testing.T) {
	c := newTestContext(t, "https://example.com:8443/a/b?c=d")
	assert.Equal(t, "https://example.com:8443", c.Origin())
	assert.Equal(t, "/api/proxy?url=", c.Prefix())
	assert.Equal(t, "proxy.local", c.ProxyHost)
}

func TestWithProxyPath(t *testing.T) {
	r := newTestRewriter(t, WithProxyPath("/p"))
	c := r.Context(mustURL(t, "https://example.com/"), "")

	got, ok := c.URL("/x")
	require.True(t, ok)
	assert.Equal(t, "/p?url=https%3A%2F%2Fexample.com%2Fx", got)
	assert.Equal(t, "/p", r.ProxyPath())
}

func TestNewRejectsBadDirectHost(t *testing.T) {
	_, err := New([]string{"bad host"})
	assert.Error(t, err)
}

func TestUnwrap(t *testing.T) {
	tests := []struct {
		ref  string
		want string
		ok   bool
	}{
		{"/api/proxy?url=https%3A%2F%2Fexample.com%2Fa", "https://example.com/a", true},
		{"http://localhost:8000/api/proxy?url=https%3A%2F%2Fexample.com%2F", "https://example.com/", true},
		{"/api/proxy", "", false},
		{"https://example.com/page", "", false},
		{"%zz", "", false},
	}

	for _, tt := range tests {
		got, ok := Unwrap(tt.ref, DefaultProxyPath)
		assert.Equal(t, tt.ok, ok, tt.ref)
		assert.Equal(t, tt.want, got, tt.ref)
	}
}
