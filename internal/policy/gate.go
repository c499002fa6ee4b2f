package policy

import (
	"net/url"
	"strings"
)

// Gate checks that a proxy request comes from an authorized front end,
// using the Referer and Origin headers it presents.
type Gate struct {
	hosts []string
}

// NewGate creates a gate for the given front-end hosts.
func NewGate(hosts ...string) *Gate {
	g := &Gate{}
	for _, h := range hosts {
		if h = Normalize(h); h != "" {
			g.hosts = append(g.hosts, h)
		}
	}
	return g
}

// Hosts returns the authorized hosts.
func (g *Gate) Hosts() []string {
	out := make([]string, len(g.hosts))
	copy(out, g.hosts)
	return out
}

// IsAuthorizedCaller reports whether either header names an authorized
// host. Both headers absent is a rejection. extra hosts are accepted for
// this call only, typically the proxy's own host.
func (g *Gate) IsAuthorizedCaller(referer, origin string, extra ...string) bool {
	if referer == "" && origin == "" {
		return false
	}

	for _, header := range []string{referer, origin} {
		if header == "" {
			continue
		}
		host, ok := headerHost(header)
		if !ok {
			continue
		}
		if g.hostAuthorized(host) || matchesAny(host, extra) {
			return true
		}
	}
	return false
}

// AllowsOrigin is IsAuthorizedCaller for an Origin header alone.
func (g *Gate) AllowsOrigin(origin string) bool {
	return g.IsAuthorizedCaller("", origin)
}

func (g *Gate) hostAuthorized(host string) bool {
	return matchesAny(host, g.hosts)
}

func matchesAny(host string, hosts []string) bool {
	for _, h := range hosts {
		h = Normalize(h)
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func headerHost(header string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(header))
	if err != nil || u.Host == "" {
		return "", false
	}
	host := Normalize(u.Hostname())
	return host, host != ""
}
