package rewrite

import "strings"

type candidate struct {
	url        string
	descriptor string
}

// parseSrcset splits a srcset value into candidates following the HTML
// candidate-string rules: URLs run to the next whitespace, so commas
// inside data: URLs survive, and descriptors end at a comma outside
// parentheses.
func parseSrcset(v string) []candidate {
	var out []candidate
	i, n := 0, len(v)

	for i < n {
		for i < n && (isSpace(v[i]) || v[i] == ',') {
			i++
		}
		if i >= n {
			break
		}

		start := i
		for i < n && !isSpace(v[i]) {
			i++
		}
		u := v[start:i]

		if strings.HasSuffix(u, ",") {
			out = append(out, candidate{url: strings.TrimRight(u, ",")})
			continue
		}

		start = i
		depth := 0
	descriptors:
		for i < n {
			switch v[i] {
			case '(':
				depth++
			case ')':
				if depth > 0 {
					depth--
				}
			case ',':
				if depth == 0 {
					break descriptors
				}
			}
			i++
		}
		out = append(out, candidate{url: u, descriptor: strings.TrimSpace(v[start:i])})
		if i < n {
			i++ // comma
		}
	}
	return out
}

// Srcset rewrites the URL of every candidate and keeps descriptors as written.
func (c *Context) Srcset(v string) (string, bool) {
	cands := parseSrcset(v)
	if len(cands) == 0 {
		return v, false
	}

	changed := false
	parts := make([]string, 0, len(cands))
	for _, cand := range cands {
		u := cand.url
		if proxied, ok := c.URL(u); ok {
			u = proxied
			changed = true
		}
		if cand.descriptor != "" {
			u += " " + cand.descriptor
		}
		parts = append(parts, u)
	}

	if !changed {
		return v, false
	}
	return strings.Join(parts, ", "), true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}
