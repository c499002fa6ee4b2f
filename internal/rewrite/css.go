package rewrite

import (
	"regexp"
	"strings"
)

var (
	cssURLRegex    = regexp.MustCompile(`(?i)url\s*\(\s*(?:'([^']*)'|"([^"]*)"|([^)\s'"]+))\s*\)`)
	cssImportRegex = regexp.MustCompile(`(?i)@import\s+(?:'([^']*)'|"([^"]*)")`)
)

// CSS rewrites url(...) references and quoted @import targets.
func (c *Context) CSS(css string) string {
	if !strings.Contains(css, "url") && !strings.Contains(css, "@import") &&
		!strings.Contains(css, "URL") && !strings.Contains(css, "@IMPORT") {
		return css
	}

	out := cssURLRegex.ReplaceAllStringFunc(css, func(match string) string {
		sub := cssURLRegex.FindStringSubmatch(match)
		raw, quote := pickQuoted(sub)

		proxied, ok := c.URL(raw)
		if !ok {
			return match
		}
		if quote == "" {
			quote = "'"
		}
		return "url(" + quote + proxied + quote + ")"
	})

	return cssImportRegex.ReplaceAllStringFunc(out, func(match string) string {
		sub := cssImportRegex.FindStringSubmatch(match)
		raw, quote := pickQuoted(sub)

		proxied, ok := c.URL(raw)
		if !ok {
			return match
		}
		return "@import " + quote + proxied + quote
	})
}

// pickQuoted returns the captured reference and the quote it was written with.
// Groups are single-quoted, double-quoted, then bare.
func pickQuoted(sub []string) (string, string) {
	switch {
	case len(sub) > 1 && sub[1] != "":
		return sub[1], "'"
	case len(sub) > 2 && sub[2] != "":
		return sub[2], `"`
	case len(sub) > 3 && sub[3] != "":
		return sub[3], ""
	}
	return "", ""
}
