package proxy

import (
	"bytes"
	"html"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/webgate/internal/api/middleware"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
)

// searchEngine is where a bare search term is sent.
const searchEngine = "https://www.google.com/search?q="

// maxSearchTerm bounds the echoed term.
const maxSearchTerm = 200

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:40rem;margin:4rem auto;padding:0 1rem;color:#222}
h1{font-size:1.4rem}
.links a{display:block;margin:.5rem 0}
.meta{color:#888;font-size:.8rem;margin-top:2rem}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{- if .Links}}
<div class="links">
{{- range .Links}}
<a href="{{.Href}}" rel="noopener noreferrer">{{.Label}}</a>
{{- end}}
</div>
{{- end}}
<p class="meta">Request {{.RequestID}}</p>
</body>
</html>
`))

type pageLink struct {
	Label string
	Href  string
}

type page struct {
	Title     string
	Message   string
	Links     []pageLink
	RequestID string
}

// plainText strips any markup from caller-supplied text before it is echoed.
var plainText = bluemonday.StrictPolicy()

func renderPage(c *gin.Context, status int, p page) {
	p.RequestID = middleware.GetRequestID(c)

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		WriteError(c, errInternal(err))
		return
	}

	setSecurityHeaders(c.Writer.Header())
	c.Header("Cache-Control", "no-store")
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
	c.Abort()
}

// searchPage answers a request that carried a search term instead of a URL.
func (m *Mediator) searchPage(c *gin.Context, term string) {
	// Sanitize returns escaped text; the template escapes it again
	term = strings.TrimSpace(html.UnescapeString(plainText.Sanitize(term)))
	if r := []rune(term); len(r) > maxSearchTerm {
		term = string(r[:maxSearchTerm])
	}

	search := searchEngine + url.QueryEscape(term)
	p := page{
		Title:   "No URL provided",
		Message: "It looks like you searched for \"" + term + "\". The proxy needs a full address such as https://example.com.",
		Links: []pageLink{
			{Label: "Search for \"" + term + "\" through the proxy", Href: m.rewriter.ProxyPath() + "?url=" + url.QueryEscape(search)},
			{Label: "Search for \"" + term + "\" directly", Href: search},
		},
	}
	renderPage(c, http.StatusBadRequest, p)
}

// callerPage explains a Referer/Origin gate rejection.
func callerPage(c *gin.Context) {
	renderPage(c, http.StatusForbidden, page{
		Title:   "Access denied",
		Message: "This proxy only serves pages opened from its own front end. Open the site you want from the proxy home page instead of linking to it directly.",
		Links:   []pageLink{{Label: "Go to the proxy home page", Href: "/"}},
	})
}
