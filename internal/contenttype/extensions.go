package contenttype

import (
	"net/url"
	"path"
	"strings"
)

var extensionTypes = map[string]string{
	// Documents
	"html":  HTML,
	"htm":   HTML,
	"xhtml": "application/xhtml+xml",
	"xml":   "application/xml",
	"txt":   PlainText,
	"md":    "text/markdown",
	"csv":   "text/csv",
	"pdf":   PDF,

	// Styles and scripts
	"css":         CSS,
	"js":          JavaScript,
	"mjs":         JavaScript,
	"cjs":         JavaScript,
	"json":        JSON,
	"map":         JSON,
	"webmanifest": "application/manifest+json",

	// Images
	"png":  PNG,
	"jpg":  JPEG,
	"jpeg": JPEG,
	"gif":  GIF,
	"webp": WebP,
	"avif": "image/avif",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",

	// Fonts
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"ttf":   "font/ttf",
	"otf":   "font/otf",
	"eot":   "application/vnd.ms-fontobject",

	// Audio and video
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"oga":  "audio/ogg",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
	"flac": "audio/flac",
	"mp4":  "video/mp4",
	"m4v":  "video/mp4",
	"webm": "video/webm",
	"ogv":  "video/ogg",
	"mov":  "video/quicktime",
	"m3u8": "application/vnd.apple.mpegurl",
	"ts":   "video/mp2t",

	// Archives
	"zip": "application/zip",
	"gz":  "application/gzip",
	"tgz": "application/gzip",
	"tar": "application/x-tar",
	"7z":  "application/x-7z-compressed",
	"rar": "application/vnd.rar",

	// WebAssembly
	"wasm": WASM,
}

// Extension returns the lowercased file extension of a URL's path, without
// the dot. Query strings and fragments are ignored.
func Extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	ext := path.Ext(path.Base(p))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ByExtension looks up the MIME type registered for an extension.
func ByExtension(ext string) (string, bool) {
	t, ok := extensionTypes[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return t, ok
}
