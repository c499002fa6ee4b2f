package rewrite

import (
	"html"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/webgate/internal/policy"
)

// DefaultProxyPath is the endpoint rewritten references point at
const DefaultProxyPath = "/api/proxy"

// schemes that never go through the proxy
var passthroughSchemes = []string{
	"data:", "blob:", "javascript:", "mailto:", "tel:", "about:", "sms:", "intent:", "chrome:", "file:",
}

// Context is the per-response state of one rewrite pass. It is built from
// the document URL and discarded with the response.
type Context struct {
	// Target is the document URL after redirects
	Target *url.URL
	// Base resolves relative references: the document's own <base href>
	// when it has one, otherwise Target
	Base *url.URL
	// ProxyHost is the proxy's hostname, without port
	ProxyHost string

	prefix string
	direct *policy.HostSet
}

func newContext(target *url.URL, proxyHost, proxyPath string, direct *policy.HostSet) *Context {
	return &Context{
		Target:    target,
		Base:      target,
		ProxyHost: hostnameOf(proxyHost),
		prefix:    proxyPath + "?url=",
		direct:    direct,
	}
}

// Origin returns scheme://host of the target document.
func (c *Context) Origin() string {
	return c.Target.Scheme + "://" + c.Target.Host
}

// Prefix returns the proxy-relative prefix every rewritten URL starts with.
func (c *Context) Prefix() string { return c.prefix }

// ProxyURL wraps an absolute URL in the proxy endpoint.
func (c *Context) ProxyURL(abs string) string {
	return c.prefix + url.QueryEscape(abs)
}

// URL rewrites one reference. It returns the input and false when the
// reference must be left alone: empty, fragment-only, a non-http scheme,
// already proxied, pointing at the proxy itself, on a direct-access host,
// or unparseable.
func (c *Context) URL(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || strings.HasPrefix(v, "#") {
		return raw, false
	}

	lower := strings.ToLower(v)
	for _, s := range passthroughSchemes {
		if strings.HasPrefix(lower, s) {
			return raw, false
		}
	}
	if strings.HasPrefix(v, c.prefix) {
		return raw, false
	}

	abs, err := c.Base.Parse(v)
	if err != nil {
		return raw, false
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return raw, false
	}

	host := strings.ToLower(abs.Hostname())
	if host == "" || host == c.ProxyHost {
		return raw, false
	}
	if c.direct.Contains(host) {
		return raw, false
	}

	return c.ProxyURL(abs.String()), true
}

// attrURL rewrites an attribute value that may carry character references.
func (c *Context) attrURL(raw string) (string, bool) {
	out, ok := c.URL(html.UnescapeString(raw))
	if !ok {
		return raw, false
	}
	return out, true
}

// Unwrap extracts the target URL from a proxy-relative or absolute proxy URL.
func Unwrap(ref, proxyPath string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Path != proxyPath {
		return "", false
	}
	target := u.Query().Get("url")
	return target, target != ""
}

func hostnameOf(hostport string) string {
	h := strings.TrimSpace(hostport)
	if h == "" {
		return ""
	}
	return strings.ToLower((&url.URL{Host: h}).Hostname())
}
