package contenttype

import (
	"mime"
	"strings"
)

// Common MIME types
const (
	HTML        = "text/html"
	CSS         = "text/css"
	JavaScript  = "application/javascript"
	JSON        = "application/json"
	PlainText   = "text/plain"
	WASM        = "application/wasm"
	PNG         = "image/png"
	JPEG        = "image/jpeg"
	GIF         = "image/gif"
	WebP        = "image/webp"
	PDF         = "application/pdf"
	OctetStream = "application/octet-stream"
)

// Category groups MIME types that share a cache policy
type Category string

const (
	CategoryHTML    Category = "html"
	CategoryCSS     Category = "css"
	CategoryJS      Category = "js"
	CategoryImage   Category = "image"
	CategoryFont    Category = "font"
	CategoryWASM    Category = "wasm"
	CategoryJSON    Category = "json"
	CategoryMedia   Category = "media"
	CategoryDefault Category = "default"
)

// Source records which rule produced a classification
type Source string

const (
	SourceSignature Source = "signature"
	SourceCorrected Source = "corrected"
	SourceForced    Source = "forced"
	SourceExtension Source = "extension"
	SourceDeclared  Source = "declared"
	SourceSniffed   Source = "sniffed"
	SourceFallback  Source = "fallback"
)

// Classification is the resolved type of one response body
type Classification struct {
	// MIME is the full value to send, parameters included
	MIME     string
	Category Category
	Source   Source
}

// Base returns the media type without parameters.
func (c Classification) Base() string { return BaseType(c.MIME) }

// IsHTML reports whether the body should go through the HTML rewriter.
func (c Classification) IsHTML() bool { return c.Category == CategoryHTML }

// IsCSS reports whether the body is a stylesheet.
func (c Classification) IsCSS() bool { return c.Category == CategoryCSS }

// BaseType lowercases a Content-Type value and strips its parameters.
func BaseType(v string) string {
	if v == "" {
		return ""
	}
	if t, _, err := mime.ParseMediaType(v); err == nil {
		return t
	}
	base, _, _ := strings.Cut(v, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// CategoryOf maps a MIME type onto its cache category.
func CategoryOf(v string) Category {
	t := BaseType(v)
	switch {
	case t == HTML || t == "application/xhtml+xml":
		return CategoryHTML
	case t == CSS:
		return CategoryCSS
	case isJavaScript(t):
		return CategoryJS
	case t == WASM:
		return CategoryWASM
	case t == JSON || strings.HasSuffix(t, "+json"):
		return CategoryJSON
	case strings.HasPrefix(t, "image/"):
		return CategoryImage
	case strings.HasPrefix(t, "font/"), t == "application/vnd.ms-fontobject", t == "application/font-woff":
		return CategoryFont
	case strings.HasPrefix(t, "audio/"), strings.HasPrefix(t, "video/"), t == "application/vnd.apple.mpegurl":
		return CategoryMedia
	default:
		return CategoryDefault
	}
}

func isJavaScript(t string) bool {
	switch t {
	case JavaScript, "text/javascript", "application/x-javascript", "application/ecmascript", "text/ecmascript":
		return true
	}
	return false
}
