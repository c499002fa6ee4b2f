package proxy

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/webgate/internal/rewrite"
)

const (
	allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	allowHeaders = "Content-Type, Authorization"
	preflightAge = "86400"
)

var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-XSS-Protection", "1; mode=block"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
}

// client headers passed to the target; everything else is dropped
var forwardedRequestHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Requested-With",
	"Content-Type",
	"Range",
	"If-Modified-Since",
	"If-None-Match",
	"If-Range",
}

// upstream headers passed back to the client
var forwardedResponseHeaders = []string{
	"ETag",
	"Last-Modified",
	"Expires",
	"Content-Disposition",
	"Vary",
	"Accept-Ranges",
	"Content-Range",
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Access-Control-Allow-Headers", allowHeaders)
}

func setSecurityHeaders(h http.Header) {
	for _, kv := range securityHeaders {
		h.Set(kv[0], kv[1])
	}
}

// outboundHeaders builds the header set sent to target for an inbound request.
func outboundHeaders(in *http.Request, target *url.URL, proxyPath, tokenCookie string) http.Header {
	out := make(http.Header)

	accept := in.Header.Get("Accept")
	if accept == "" {
		accept = "*/*"
	}
	lang := in.Header.Get("Accept-Language")
	if lang == "" {
		lang = "en-US,en;q=0.9"
	}
	out.Set("Accept", accept)
	out.Set("Accept-Language", lang)
	out.Set("Cache-Control", "no-cache")
	out.Set("Pragma", "no-cache")

	for _, name := range forwardedRequestHeaders {
		if values := in.Header.Values(name); len(values) > 0 {
			out[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
		}
	}

	if cookie := stripCookie(in, tokenCookie); cookie != "" {
		out.Set("Cookie", cookie)
	} else {
		out.Del("Cookie")
	}

	out.Set("Referer", upstreamReferer(in.Header.Get("Referer"), target, proxyPath))
	return out
}

// upstreamReferer unwraps a proxied Referer to the page it stands for;
// anything else becomes the target origin.
func upstreamReferer(referer string, target *url.URL, proxyPath string) string {
	if wrapped, ok := rewrite.Unwrap(referer, proxyPath); ok {
		if u, err := url.Parse(wrapped); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			return wrapped
		}
	}
	return target.Scheme + "://" + target.Host
}

// stripCookie rebuilds the Cookie header without the proxy's own token cookie.
func stripCookie(in *http.Request, name string) string {
	cookies := in.Cookies()
	if len(cookies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == name {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// copyResponseHeaders copies the forwarded upstream headers.
func copyResponseHeaders(dst, src http.Header) {
	for _, name := range forwardedResponseHeaders {
		if values := src.Values(name); len(values) > 0 {
			dst[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
		}
	}
}

// addVary appends value to the Vary header unless already listed.
func addVary(h http.Header, value string) {
	for _, v := range h.Values("Vary") {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), value) {
				return
			}
		}
	}
	h.Add("Vary", value)
}
