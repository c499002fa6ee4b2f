package contenttype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	pngBytes  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}
	gifBytes  = []byte("GIF89a\x01\x00\x01\x00")
	webpBytes = []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
	wasmBytes = []byte{0x00, 'a', 's', 'm', 0x01, 0, 0, 0}
	pdfBytes  = []byte("%PDF-1.7\n%\xe2\xe3")
)

func TestSignature(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want string
	}{
		{name: "png", body: pngBytes, want: PNG},
		{name: "jpeg", body: jpegBytes, want: JPEG},
		{name: "gif", body: gifBytes, want: GIF},
		{name: "webp", body: webpBytes, want: WebP},
		{name: "riff without webp tag", body: []byte("RIFF\x24\x00\x00\x00AVI LIST"), want: ""},
		{name: "wasm", body: wasmBytes, want: WASM},
		{name: "pdf", body: pdfBytes, want: PDF},
		{name: "text", body: []byte("body { color: red }"), want: ""},
		{name: "empty", body: nil, want: ""},
		{name: "short", body: []byte{0x89, 'P'}, want: ""},
		{name: "magic past window", body: append(make([]byte, 20), pngBytes...), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Signature(tt.body))
		})
	}
}

func TestResolvePNGAlwaysWins(t *testing.T) {
	cases := []struct{ url, declared string }{
		{"https://example.com/logo.png", "image/png"},
		{"https://example.com/style.css", "text/css"},
		{"https://example.com/app.js", "application/json"},
		{"https://example.com/data", "text/plain"},
		{"https://example.com/page.html", "text/html"},
	}

	for _, c := range cases {
		got := Resolve(c.url, c.declared, pngBytes)
		assert.Equal(t, PNG, got.MIME, c.url)
		assert.Equal(t, SourceSignature, got.Source)
		assert.Equal(t, CategoryImage, got.Category)
	}
}

func TestResolveCSSAlwaysCSS(t *testing.T) {
	body := []byte("body { color: red }")

	for _, declared := range []string{"application/json", "text/plain", "text/html", "application/octet-stream", ""} {
		got := Resolve("https://example.com/assets/site.css?v=3", declared, body)
		assert.Equal(t, CSS, got.Base(), declared)
		assert.True(t, got.IsCSS())
	}

	got := Resolve("https://example.com/site.css", "text/css; charset=utf-8", body)
	assert.Equal(t, "text/css; charset=utf-8", got.MIME)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		declared string
		body     []byte
		want     string
		source   Source
	}{
		{
			name:     "json mislabelled script",
			url:      "https://example.com/app.js",
			declared: "application/json",
			body:     []byte("console.log(1)"),
			want:     JavaScript,
			source:   SourceCorrected,
		},
		{
			name:     "html mislabelled module",
			url:      "https://example.com/app.mjs",
			declared: "text/html",
			body:     []byte("export default 1"),
			want:     JavaScript,
			source:   SourceCorrected,
		},
		{
			name:     "octet-stream script forced",
			url:      "https://example.com/app.mjs",
			declared: "application/octet-stream",
			body:     []byte("export default 1"),
			want:     JavaScript,
			source:   SourceForced,
		},
		{
			name:     "text/javascript kept",
			url:      "https://example.com/app.js",
			declared: "text/javascript; charset=utf-8",
			body:     []byte("1"),
			want:     "text/javascript; charset=utf-8",
			source:   SourceDeclared,
		},
		{
			name:     "plain text font",
			url:      "https://example.com/f.woff2",
			declared: "text/plain",
			body:     []byte("not a real font"),
			want:     "font/woff2",
			source:   SourceCorrected,
		},
		{
			name:     "json image",
			url:      "https://example.com/i.png",
			declared: "application/json",
			body:     []byte("{}"),
			want:     PNG,
			source:   SourceCorrected,
		},
		{
			name:     "wasm by signature",
			url:      "https://example.com/m",
			declared: "application/json",
			body:     wasmBytes,
			want:     WASM,
			source:   SourceSignature,
		},
		{
			name:     "extension agrees, parameters kept",
			url:      "https://example.com/index.html",
			declared: "text/html; charset=gbk",
			body:     []byte("<html></html>"),
			want:     "text/html; charset=gbk",
			source:   SourceExtension,
		},
		{
			name:     "extension beats unrelated declared type",
			url:      "https://example.com/feed.xml",
			declared: "text/html",
			body:     []byte("<rss></rss>"),
			want:     "application/xml",
			source:   SourceExtension,
		},
		{
			name:     "specific declared type without extension",
			url:      "https://example.com/page.php",
			declared: "text/html; charset=utf-8",
			body:     []byte("<p>hi</p>"),
			want:     "text/html; charset=utf-8",
			source:   SourceDeclared,
		},
		{
			name:     "generic json confirmed by body",
			url:      "https://api.github.com/repos/x/y",
			declared: "application/json; charset=utf-8",
			body:     []byte(`{"id": 1, "name": "y"}`),
			want:     "application/json; charset=utf-8",
			source:   SourceDeclared,
		},
		{
			name:     "generic text confirmed by body",
			url:      "https://example.com/robots",
			declared: "text/plain",
			body:     []byte("User-agent: *\nDisallow:\n"),
			want:     "text/plain",
			source:   SourceDeclared,
		},
		{
			name:     "generic json contradicted by body",
			url:      "https://example.com/thing",
			declared: "application/json",
			body:     []byte("<html><body>nope</body></html>"),
			want:     OctetStream,
			source:   SourceFallback,
		},
		{
			name:   "nothing at all",
			url:    "https://example.com/blob",
			want:   OctetStream,
			source: SourceFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.url, tt.declared, tt.body)
			assert.Equal(t, tt.want, got.MIME)
			assert.Equal(t, tt.source, got.Source)
		})
	}
}

func TestResolveSniffsUndeclaredHTML(t *testing.T) {
	got := Resolve("https://example.com/", "", []byte("<!DOCTYPE html><html><head></head><body></body></html>"))

	assert.Equal(t, HTML, got.Base())
	assert.True(t, got.IsHTML())
	assert.Equal(t, SourceSniffed, got.Source)
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"https://x.com/a/b.CSS?v=1#f":  "css",
		"https://x.com/a.min.js":       "js",
		"/rel/app.mjs?x=1":             "mjs",
		"https://x.com/dir/":           "",
		"https://x.com/file":           "",
		"https://x.com/file?name=a.js": "",
		"https://x.com/%zz.js?":        "js",
	}

	for in, want := range tests {
		assert.Equal(t, want, Extension(in), in)
	}
}

func TestByExtension(t *testing.T) {
	got, ok := ByExtension(".WASM")
	assert.True(t, ok)
	assert.Equal(t, WASM, got)

	_, ok = ByExtension("exe")
	assert.False(t, ok)
}

func TestCategoryOf(t *testing.T) {
	tests := map[string]Category{
		"text/html; charset=utf-8":      CategoryHTML,
		"application/xhtml+xml":         CategoryHTML,
		"TEXT/CSS":                      CategoryCSS,
		"text/javascript":               CategoryJS,
		"application/javascript":        CategoryJS,
		"image/svg+xml":                 CategoryImage,
		"font/woff2":                    CategoryFont,
		"application/vnd.ms-fontobject": CategoryFont,
		"application/wasm":              CategoryWASM,
		"application/json":              CategoryJSON,
		"application/manifest+json":     CategoryJSON,
		"video/mp4":                     CategoryMedia,
		"application/zip":               CategoryDefault,
		"":                              CategoryDefault,
	}

	for in, want := range tests {
		assert.Equal(t, want, CategoryOf(in), in)
	}
}

func TestCacheControl(t *testing.T) {
	assert.Equal(t, "no-cache, no-store, must-revalidate, proxy-revalidate", CacheControl(CategoryHTML))
	assert.Equal(t, CacheControl(CategoryCSS), CacheControl(CategoryJS))
	assert.Contains(t, CacheControl(CategoryImage), "stale-while-revalidate=2592000")
	assert.Contains(t, CacheControl(CategoryFont), "immutable")
	assert.Equal(t, "public, max-age=3600, s-maxage=7200", CacheControl(CategoryWASM))
	assert.Equal(t, CacheControl(CategoryDefault), CacheControl(CategoryMedia))
	assert.Equal(t, CacheControl(CategoryDefault), CacheControl(Category("unknown")))
}

func TestCompressible(t *testing.T) {
	assert.True(t, Compressible(CategoryHTML))
	assert.True(t, Compressible(CategoryJSON))
	assert.False(t, Compressible(CategoryImage))
	assert.False(t, Compressible(CategoryFont))
}
