package rewrite

import (
	"net/url"
	"text/template"

	"github.com/GriffinCanCode/webgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webgate/internal/policy"
)

// Rewriter holds the settings shared by every rewrite pass.
type Rewriter struct {
	proxyPath      string
	direct         *policy.HostSet
	directPatterns []string
	shim           bool
	shimTemplate   *template.Template
	log            *logging.Logger
}

// Option configures a Rewriter
type Option func(*Rewriter)

// WithProxyPath overrides the proxy endpoint path.
func WithProxyPath(p string) Option {
	return func(r *Rewriter) { r.proxyPath = p }
}

// WithoutShim disables runtime shim injection.
func WithoutShim() Option {
	return func(r *Rewriter) { r.shim = false }
}

// WithLogger sets the logger used to report rewrite problems.
func WithLogger(l *logging.Logger) Option {
	return func(r *Rewriter) {
		if l != nil {
			r.log = l.Component("rewrite")
		}
	}
}

// New creates a rewriter. directHosts are exact or *.suffix patterns for
// CDN hosts that are linked to directly instead of through the proxy.
func New(directHosts []string, opts ...Option) (*Rewriter, error) {
	direct, err := policy.NewHostSet("direct", directHosts...)
	if err != nil {
		return nil, err
	}

	r := &Rewriter{
		proxyPath: DefaultProxyPath,
		direct:    direct,
		shim:         true,
		shimTemplate: shimTemplate,
		log:          logging.NewNop(),
	}
	for _, e := range directHosts {
		if p, err := policy.ParseEntry(e, "direct"); err == nil {
			r.directPatterns = append(r.directPatterns, p.Pattern)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ProxyPath returns the proxy endpoint path.
func (r *Rewriter) ProxyPath() string { return r.proxyPath }

// Context creates the state for one rewrite pass over target.
func (r *Rewriter) Context(target *url.URL, proxyHost string) *Context {
	return newContext(target, proxyHost, r.proxyPath, r.direct)
}

// HTML rewrites a document fetched from target.
func (r *Rewriter) HTML(doc string, target *url.URL, proxyHost string) string {
	return r.rewriteHTML(doc, r.Context(target, proxyHost))
}

// CSS rewrites a stylesheet fetched from target.
func (r *Rewriter) CSS(css string, target *url.URL, proxyHost string) string {
	return r.Context(target, proxyHost).CSS(css)
}
