package contenttype

import "github.com/gabriel-vasile/mimetype"

// Resolve determines the MIME type to serve for a response body.
//
// Rules, first match wins:
//  1. a binary signature in the body
//  2. an extension-derived type replacing a declared json, plain text or
//     html type on what the extension says is css, js, image, font or wasm
//  3. text/css for .css and application/javascript for .js and .mjs
//  4. the extension type, then a specific declared type, then a declared
//     generic type the body confirms, then application/octet-stream
func Resolve(rawURL, declared string, body []byte) Classification {
	if sig := Signature(body); sig != "" {
		return classify(sig, SourceSignature)
	}
	if sniffed := sniffBinary(body); sniffed != "" {
		return classify(sniffed, SourceSignature)
	}

	ext := Extension(rawURL)
	expected, hasExpected := ByExtension(ext)
	declaredBase := BaseType(declared)

	if hasExpected && mislabelled(declaredBase) && correctable(expected) {
		return classify(expected, SourceCorrected)
	}

	switch ext {
	case "css":
		if declaredBase == CSS {
			return classify(declared, SourceDeclared)
		}
		return classify(CSS, SourceForced)
	case "js", "mjs":
		if isJavaScript(declaredBase) {
			return classify(declared, SourceDeclared)
		}
		return classify(JavaScript, SourceForced)
	}

	if hasExpected {
		// Keep upstream parameters such as charset when it agrees
		if declaredBase == BaseType(expected) {
			return classify(declared, SourceExtension)
		}
		return classify(expected, SourceExtension)
	}

	if declaredBase != "" && !generic(declaredBase) {
		return classify(declared, SourceDeclared)
	}

	if len(body) > 0 {
		sniffed := sniffAny(body)
		if declaredBase != "" && confirms(sniffed, declaredBase) {
			return classify(declared, SourceDeclared)
		}
		if declaredBase == "" && BaseType(sniffed.String()) != OctetStream {
			return classify(sniffed.String(), SourceSniffed)
		}
	}

	return classify(OctetStream, SourceFallback)
}

func classify(mimeType string, src Source) Classification {
	return Classification{MIME: mimeType, Category: CategoryOf(mimeType), Source: src}
}

// mislabelled lists declared types that origins put on static assets by mistake.
func mislabelled(t string) bool {
	return t == JSON || t == PlainText || t == HTML
}

func correctable(expected string) bool {
	switch CategoryOf(expected) {
	case CategoryCSS, CategoryJS, CategoryImage, CategoryFont, CategoryWASM:
		return true
	}
	return false
}

// confirms walks the detector's type tree, so a JSON body confirms a
// declared text/plain.
func confirms(m *mimetype.MIME, t string) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(t) {
			return true
		}
	}
	return false
}

func generic(t string) bool {
	return t == PlainText || t == JSON || t == OctetStream
}
