package upstream

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// minDetectConfidence is the chardet score needed to override the
// windows-1252 fallback.
const minDetectConfidence = 60

// ToUTF8 transcodes an HTML body to UTF-8. It returns the body, the name of
// the source charset, and whether any transcoding took place. The
// Content-Type charset wins, then a BOM or <meta> declaration, then
// detection.
func ToUTF8(body []byte, contentType string) ([]byte, string, bool, error) {
	if isASCII(body) {
		return body, "utf-8", false, nil
	}

	_, name, certain := charset.DetermineEncoding(body, contentType)
	if !certain && name == "windows-1252" && !declaresCharset(body) {
		if res, err := chardet.NewHtmlDetector().DetectBest(body); err == nil && res.Confidence >= minDetectConfidence {
			if _, detected := charset.Lookup(res.Charset); detected != "" {
				name = detected
			}
		}
	}
	if name == "utf-8" {
		return body, name, false, nil
	}

	r, err := charset.NewReaderLabel(name, bytes.NewReader(body))
	if err != nil {
		return body, name, false, fmt.Errorf("charset %s: %w", name, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return body, name, false, fmt.Errorf("transcode %s: %w", name, err)
	}
	return out, name, true, nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// declaresCharset reports whether the head of the document names a charset.
func declaresCharset(body []byte) bool {
	head := body
	if len(head) > 1024 {
		head = head[:1024]
	}
	return strings.Contains(strings.ToLower(string(head)), "charset")
}
