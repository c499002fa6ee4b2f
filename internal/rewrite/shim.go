package rewrite

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/GriffinCanCode/webgate/internal/infrastructure/logging"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const shimMarker = "data-proxy-shim"

//go:embed shim.js
var shimSource string

var shimTemplate = template.Must(template.New("shim").Parse(shimSource))

// shimConfig is handed to the runtime shim as a JSON literal.
type shimConfig struct {
	Base      string   `json:"base"`
	Prefix    string   `json:"prefix"`
	ProxyHost string   `json:"proxyHost"`
	Direct    []string `json:"direct"`
	Skip      []string `json:"skip"`
}

// Shim renders the runtime script for one document, without the script tag.
func (r *Rewriter) Shim(c *Context) (string, error) {
	direct := r.directPatterns
	if direct == nil {
		direct = []string{}
	}
	// ConfigStd escapes <, > and & so the literal cannot close the script element
	cfg, err := sonic.ConfigStd.MarshalToString(shimConfig{
		Base:      c.Base.String(),
		Prefix:    c.prefix,
		ProxyHost: c.ProxyHost,
		Direct:    direct,
		Skip:      passthroughSchemes,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if err := r.shimTemplate.Execute(&b, cfg); err != nil {
		return "", err
	}
	return b.String(), nil
}

// shimTag wraps the shim in its script element. A render failure serves the
// page without the shim.
func (r *Rewriter) shimTag(c *Context) string {
	js, err := r.Shim(c)
	if err != nil {
		r.log.Error("shim render failed, serving page without interception",
			logging.Target("target", c.Target),
			zap.Error(err),
		)
		return ""
	}
	return "<script " + shimMarker + ">" + js + "</script>"
}
