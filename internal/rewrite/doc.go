// Package rewrite turns fetched documents into proxy-relative documents.
//
// Every URL-bearing construct the engine recognises (URL attributes, srcset
// lists, inline and embedded CSS, meta refresh targets) is resolved against
// the document base and replaced with /api/proxy?url=<escaped absolute URL>.
// References that must not be proxied are left as written: fragments,
// non-http schemes, values already in proxy form, links to the proxy host
// itself, and the direct-access CDN hosts.
//
// Matching is pattern based rather than a full parse. Script bodies are
// never rewritten; a runtime shim injected into <head> routes the URLs that
// page scripts request through fetch, XMLHttpRequest and WebAssembly
// streaming.
package rewrite
