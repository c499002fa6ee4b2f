// Package contenttype decides which MIME type the proxy serves.
//
// Origins behind misconfigured static hosts and aggressive edge caches
// routinely label stylesheets, scripts and images as application/json or
// text/plain. Browsers refuse mistyped CSS and JavaScript, so Resolve
// combines magic-number sniffing, an extension table and the declared
// header to pick a type, and CacheControl maps the result to a cache
// policy.
package contenttype
