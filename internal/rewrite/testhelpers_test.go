package rewrite

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

var testDirect = []string{"cdnjs.cloudflare.com", "*.jsdelivr.net"}

const testProxyHost = "proxy.local:8000"

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func newTestRewriter(t *testing.T, opts ...Option) *Rewriter {
	t.Helper()
	r, err := New(testDirect, opts...)
	require.NoError(t, err)
	return r
}

func newTestContext(t *testing.T, target string) *Context {
	t.Helper()
	return newTestRewriter(t).Context(mustURL(t, target), testProxyHost)
}

// proxied is the expected proxy form of an absolute URL.
func proxied(abs string) string {
	return DefaultProxyPath + "?url=" + url.QueryEscape(abs)
}
