package rewrite

import (
	"html"
	"regexp"
	"sort"
	"strings"
)

var (
	tagRegex     = regexp.MustCompile(`^<([a-zA-Z][a-zA-Z0-9:_-]*)((?:[^>"']|"[^"]*"|'[^']*')*)>`)
	attrRegex    = regexp.MustCompile("^([^\\s\"'<>/=]+)(?:\\s*=\\s*(?:'([^']*)'|\"([^\"]*)\"|([^\\s\"'=<>`]+)))?")
	endTagRegex  = regexp.MustCompile(`^</([a-z][a-z0-9:_-]*)`)
	metaURLRegex = regexp.MustCompile(`(?i)(?:^|;)\s*url\s*=\s*['"]?([^'"]+)`)
	refreshRegex = regexp.MustCompile(`(?i)http-equiv\s*=\s*['"]?refresh`)
)

// attributes holding a single URL
var urlAttrs = map[string]bool{
	"href":       true,
	"src":        true,
	"action":     true,
	"data-src":   true,
	"data-href":  true,
	"poster":     true,
	"manifest":   true,
	"xlink:href": true,
}

// elements whose content is copied without looking for tags
var rawTextElements = map[string]bool{
	"script":   true,
	"style":    true,
	"textarea": true,
	"title":    true,
}

// landmarks are offsets in the rewritten output used to place injected markup.
type landmarks struct {
	headOpenEnd int
	headClose   int
	bodyOpen    int
	htmlOpenEnd int
	doctypeEnd  int
}

type insertion struct {
	at    int
	order int
	text  string
}

// attr is one parsed attribute of a start tag. Offsets are relative to the
// attribute section.
type attr struct {
	name       string
	start, end int
	valStart   int
	valEnd     int
	quote      string
}

func (a attr) hasValue() bool { return a.valStart >= 0 }

// tokenKind classifies a piece of the document seen by scan.
type tokenKind int

const (
	tokenText tokenKind = iota
	tokenComment
	tokenMarkup // doctype, processing instruction or end tag
	tokenStartTag
	tokenRawText // content of a raw-text element
)

// token is one piece of the document. name is the lowercased tag name of
// start and end tags, and of the element enclosing raw text.
type token struct {
	kind  tokenKind
	pos   int
	raw   string
	tag   string
	name  string
	attrs string
}

// scan splits doc into tokens, skipping comments and raw-text element bodies
// so markup inside them is never taken for a tag. lower is doc lowercased.
// scan stops when visit returns false.
func scan(doc, lower string, visit func(token) bool) {
	i := 0
	emit := func(t token) bool {
		i += len(t.raw)
		return visit(t)
	}

	for i < len(doc) {
		j := strings.IndexByte(doc[i:], '<')
		if j < 0 {
			emit(token{kind: tokenText, pos: i, raw: doc[i:]})
			return
		}
		if j > 0 && !emit(token{kind: tokenText, pos: i, raw: doc[i : i+j]}) {
			return
		}
		rest := doc[i:]

		if strings.HasPrefix(rest, "<!--") {
			n := len(rest)
			if end := strings.Index(rest[4:], "-->"); end >= 0 {
				n = 4 + end + 3
			}
			if !emit(token{kind: tokenComment, pos: i, raw: rest[:n]}) {
				return
			}
			continue
		}

		if strings.HasPrefix(rest, "<!") || strings.HasPrefix(rest, "<?") || strings.HasPrefix(rest, "</") {
			n := len(rest)
			if end := strings.IndexByte(rest, '>'); end >= 0 {
				n = end + 1
			}
			t := token{kind: tokenMarkup, pos: i, raw: rest[:n]}
			if m := endTagRegex.FindStringSubmatch(lower[i : i+n]); m != nil {
				t.name = m[1]
			}
			if !emit(t) {
				return
			}
			continue
		}

		loc := tagRegex.FindStringSubmatchIndex(rest)
		if loc == nil {
			if !emit(token{kind: tokenText, pos: i, raw: "<"}) {
				return
			}
			continue
		}

		tag := rest[loc[2]:loc[3]]
		t := token{
			kind:  tokenStartTag,
			pos:   i,
			raw:   rest[:loc[1]],
			tag:   tag,
			name:  asciiLower(tag),
			attrs: rest[loc[4]:loc[5]],
		}
		if !emit(t) {
			return
		}

		if rawTextElements[t.name] && !strings.HasSuffix(t.attrs, "/") {
			end := endTagIndex(lower[i:], t.name)
			if end < 0 {
				end = len(doc) - i
			}
			if end > 0 && !emit(token{kind: tokenRawText, pos: i, raw: doc[i : i+end], name: t.name}) {
				return
			}
		}
	}
}

// endTagIndex finds the first </name that is followed by a tag-name boundary.
func endTagIndex(lower, name string) int {
	needle := "</" + name
	off := 0
	for {
		k := strings.Index(lower[off:], needle)
		if k < 0 {
			return -1
		}
		at := off + k
		next := at + len(needle)
		if next == len(lower) || isSpace(lower[next]) || lower[next] == '>' || lower[next] == '/' {
			return at
		}
		off = next
	}
}

// documentBase returns the href of the first real <base> start tag.
func documentBase(doc, lower string) (string, bool) {
	var (
		href  string
		found bool
	)
	scan(doc, lower, func(t token) bool {
		if t.kind != tokenStartTag || t.name != "base" {
			return true
		}
		for _, a := range parseAttrs(t.attrs) {
			if a.name == "href" && a.hasValue() {
				href, found = t.attrs[a.valStart:a.valEnd], true
				return false
			}
		}
		return true
	})
	return href, found
}

func (r *Rewriter) rewriteHTML(doc string, c *Context) string {
	lower := asciiLower(doc)

	hasBaseHref := false
	if href, ok := documentBase(doc, lower); ok {
		if base, err := c.Target.Parse(strings.TrimSpace(html.UnescapeString(href))); err == nil {
			c.Base = base
			hasBaseHref = true
		}
	}

	marks := landmarks{headOpenEnd: -1, headClose: -1, bodyOpen: -1, htmlOpenEnd: -1, doctypeEnd: -1}

	var b strings.Builder
	b.Grow(len(doc) + len(doc)/8 + 4096)

	scan(doc, lower, func(t token) bool {
		switch t.kind {
		case tokenMarkup:
			if marks.headClose < 0 && t.name == "head" {
				marks.headClose = b.Len()
			}
			b.WriteString(t.raw)
			if marks.doctypeEnd < 0 && strings.HasPrefix(lower[t.pos:], "<!doctype") {
				marks.doctypeEnd = b.Len()
			}

		case tokenStartTag:
			switch t.name {
			case "head":
				b.WriteString(t.raw)
				if marks.headOpenEnd < 0 {
					marks.headOpenEnd = b.Len()
				}
			case "html":
				b.WriteString(t.raw)
				if marks.htmlOpenEnd < 0 {
					marks.htmlOpenEnd = b.Len()
				}
			case "base":
				b.WriteString("<" + t.tag + c.absolutizeBase(t.attrs) + ">")
			default:
				if t.name == "body" && marks.bodyOpen < 0 {
					marks.bodyOpen = b.Len()
				}
				b.WriteString("<" + t.tag + c.rewriteAttrs(t.name, t.attrs) + ">")
			}

		case tokenRawText:
			if t.name == "style" {
				b.WriteString(c.CSS(t.raw))
			} else {
				b.WriteString(t.raw)
			}

		default:
			b.WriteString(t.raw)
		}
		return true
	})

	return r.inject(b.String(), c, marks, hasBaseHref)
}

// inject places the base tag and the runtime shim into the rewritten document.
func (r *Rewriter) inject(out string, c *Context, marks landmarks, hasBaseHref bool) string {
	basePos := 0
	switch {
	case marks.headOpenEnd >= 0:
		basePos = marks.headOpenEnd
	case marks.bodyOpen >= 0:
		basePos = marks.bodyOpen
	case marks.htmlOpenEnd >= 0:
		basePos = marks.htmlOpenEnd
	case marks.doctypeEnd >= 0:
		basePos = marks.doctypeEnd
	}

	var ins []insertion
	if !hasBaseHref {
		ins = append(ins, insertion{at: basePos, text: `<base href="` + html.EscapeString(c.Origin()+"/") + `">`})
	}

	if r.shim && !strings.Contains(out, shimMarker) {
		shimPos := basePos
		switch {
		case marks.headClose >= basePos:
			shimPos = marks.headClose
		case marks.bodyOpen >= basePos:
			shimPos = marks.bodyOpen
		}
		ins = append(ins, insertion{at: shimPos, order: 1, text: r.shimTag(c)})
	}

	if len(ins) == 0 {
		return out
	}
	sort.SliceStable(ins, func(a, b int) bool {
		if ins[a].at != ins[b].at {
			return ins[a].at < ins[b].at
		}
		return ins[a].order < ins[b].order
	})

	var b strings.Builder
	b.Grow(len(out) + 8192)
	prev := 0
	for _, in := range ins {
		b.WriteString(out[prev:in.at])
		b.WriteString(in.text)
		prev = in.at
	}
	b.WriteString(out[prev:])
	return b.String()
}

// parseAttrs splits the attribute section of a start tag.
func parseAttrs(s string) []attr {
	var out []attr
	i := 0
	for i < len(s) {
		if isSpace(s[i]) || s[i] == '/' {
			i++
			continue
		}
		m := attrRegex.FindStringSubmatchIndex(s[i:])
		if m == nil {
			i++
			continue
		}

		a := attr{name: asciiLower(s[i+m[2] : i+m[3]]), start: i, end: i + m[1], valStart: -1, valEnd: -1}
		switch {
		case m[4] >= 0:
			a.valStart, a.valEnd, a.quote = i+m[4], i+m[5], "'"
		case m[6] >= 0:
			a.valStart, a.valEnd, a.quote = i+m[6], i+m[7], `"`
		case m[8] >= 0:
			a.valStart, a.valEnd = i+m[8], i+m[9]
		}
		out = append(out, a)
		i += m[1]
	}
	return out
}

// rewriteAttrs rewrites the URL-bearing values of a start tag. Bytes between
// and around attributes are copied unchanged.
func (c *Context) rewriteAttrs(tag, s string) string {
	attrs := parseAttrs(s)
	if len(attrs) == 0 {
		return s
	}

	refresh := tag == "meta" && refreshRegex.MatchString(s)

	type edit struct {
		attr
		value string
		drop  bool
	}
	var edits []edit
	hrefRewritten := false

	for _, a := range attrs {
		if !a.hasValue() {
			continue
		}
		v, ok := c.attrValue(a.name, s[a.valStart:a.valEnd], refresh)
		if !ok {
			continue
		}
		if a.name == "href" {
			hrefRewritten = true
		}
		edits = append(edits, edit{attr: a, value: v})
	}

	// a rewritten stylesheet no longer matches its subresource hash
	if tag == "link" && hrefRewritten {
		for _, a := range attrs {
			if a.name == "integrity" {
				edits = append(edits, edit{attr: a, drop: true})
			}
		}
		sort.Slice(edits, func(x, y int) bool { return edits[x].start < edits[y].start })
	}

	if len(edits) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 128)
	prev := 0
	for _, e := range edits {
		if e.drop {
			b.WriteString(strings.TrimRight(s[prev:e.start], " \t\n\r\f"))
			prev = e.end
			continue
		}
		quote := e.quote
		if quote == "" {
			quote = `"`
		}
		b.WriteString(s[prev : e.valStart-len(e.quote)])
		b.WriteString(quote)
		b.WriteString(e.value)
		b.WriteString(quote)
		prev = e.valEnd + len(e.quote)
	}
	b.WriteString(s[prev:])
	return b.String()
}

// attrValue rewrites one attribute value. The result is safe inside either
// quote style.
func (c *Context) attrValue(name, raw string, refresh bool) (string, bool) {
	switch {
	case urlAttrs[name]:
		return c.attrURL(raw)

	case name == "srcset" || name == "imagesrcset":
		out, ok := c.Srcset(html.UnescapeString(raw))
		if !ok {
			return raw, false
		}
		return html.EscapeString(out), true

	case name == "style":
		decoded := html.UnescapeString(raw)
		out := c.CSS(decoded)
		if out == decoded {
			return raw, false
		}
		return html.EscapeString(out), true

	case name == "content" && refresh:
		decoded := html.UnescapeString(raw)
		m := metaURLRegex.FindStringSubmatchIndex(decoded)
		if m == nil {
			return raw, false
		}
		proxied, ok := c.URL(decoded[m[2]:m[3]])
		if !ok {
			return raw, false
		}
		return html.EscapeString(decoded[:m[2]] + proxied + decoded[m[3]:]), true
	}
	return raw, false
}

// absolutizeBase resolves a relative <base href> against the document URL
// so the browser does not resolve it against the proxy.
func (c *Context) absolutizeBase(s string) string {
	for _, a := range parseAttrs(s) {
		if a.name != "href" || !a.hasValue() {
			continue
		}
		raw := s[a.valStart:a.valEnd]
		abs, err := c.Target.Parse(strings.TrimSpace(html.UnescapeString(raw)))
		if err != nil {
			return s
		}
		quote := a.quote
		if quote == "" {
			quote = `"`
		}
		return s[:a.valStart-len(a.quote)] + quote + html.EscapeString(abs.String()) + quote + s[a.valEnd+len(a.quote):]
	}
	return s
}

// asciiLower lowercases A-Z only, so byte offsets match the input.
func asciiLower(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			b := []byte(s)
			for j := i; j < len(b); j++ {
				if b[j] >= 'A' && b[j] <= 'Z' {
					b[j] += 'a' - 'A'
				}
			}
			return string(b)
		}
	}
	return s
}
