package contenttype

import (
	"bytes"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const signatureWindow = 16

type signature struct {
	offset int
	magic  []byte
	mime   string
	// also requires a second tag, used by RIFF containers
	tagAt int
	tag   []byte
}

var signatures = []signature{
	{magic: []byte{0x89, 'P', 'N', 'G'}, mime: PNG},
	{magic: []byte{0xFF, 0xD8, 0xFF}, mime: JPEG},
	{magic: []byte("GIF87a"), mime: GIF},
	{magic: []byte("GIF89a"), mime: GIF},
	{magic: []byte("RIFF"), tagAt: 8, tag: []byte("WEBP"), mime: WebP},
	{magic: []byte{0x00, 'a', 's', 'm'}, mime: WASM},
	{magic: []byte("%PDF"), mime: PDF},
}

// Signature matches the first bytes of body against the fixed magic number
// table. It returns "" when nothing matches.
func Signature(body []byte) string {
	head := body
	if len(head) > signatureWindow {
		head = head[:signatureWindow]
	}

	for _, s := range signatures {
		if !hasAt(head, s.offset, s.magic) {
			continue
		}
		if s.tag != nil && !hasAt(head, s.tagAt, s.tag) {
			continue
		}
		return s.mime
	}
	return ""
}

func hasAt(b []byte, offset int, want []byte) bool {
	return len(b) >= offset+len(want) && bytes.Equal(b[offset:offset+len(want)], want)
}

// binaryFamily reports whether a sniffed type is trustworthy enough to
// override what the upstream declared. Text formats are excluded: sniffing
// cannot tell a stylesheet from plain text.
func binaryFamily(t string) bool {
	if t == "image/svg+xml" {
		return false
	}
	switch {
	case strings.HasPrefix(t, "image/"),
		strings.HasPrefix(t, "font/"),
		strings.HasPrefix(t, "audio/"),
		strings.HasPrefix(t, "video/"):
		return true
	}
	switch t {
	case WASM, PDF, "application/zip", "application/gzip", "application/x-7z-compressed",
		"application/vnd.rar", "application/x-rar-compressed", "application/vnd.ms-fontobject":
		return true
	}
	return false
}

// sniffBinary runs the broader mimetype detector and keeps the answer only
// for binary families.
func sniffBinary(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	t := BaseType(mimetype.Detect(body).String())
	if binaryFamily(t) {
		return t
	}
	return ""
}

// sniffAny returns the detector's answer for body, whatever its family.
func sniffAny(body []byte) *mimetype.MIME {
	return mimetype.Detect(body)
}
