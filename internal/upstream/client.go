package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/webgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webgate/internal/infrastructure/resilience"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Options configures the upstream client.
type Options struct {
	Timeout         time.Duration
	MaxResponseSize int64
	MaxRedirects    int
	UserAgent       string
	// CheckRedirect vets every redirect hop before it is followed
	CheckRedirect func(*url.URL) error
	// Breaker configures the per-host circuit breakers. IsFailure is
	// always replaced so only timeouts and network errors count.
	Breaker resilience.Settings
	// Transport overrides the pooled transport; used by tests
	Transport http.RoundTripper
	Logger    *logging.Logger
}

// DefaultOptions mirrors the deployment defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:         30 * time.Second,
		MaxResponseSize: 50 << 20,
		MaxRedirects:    10,
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Request is one outbound fetch.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   io.Reader
}

// Response is a fully read, decoded upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// FinalURL is the URL of the last hop after redirects
	FinalURL *url.URL
	Duration time.Duration
}

// Client fetches targets through resty with per-host circuit breakers.
// Retries are disabled: a failed fetch is reported, never repeated.
type Client struct {
	resty    *resty.Client
	breakers *resilience.Group
	opts     Options
}

// New creates an upstream client
func New(opts Options) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxResponseSize <= 0 {
		opts.MaxResponseSize = def.MaxResponseSize
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	log := opts.Logger.Component("upstream")

	transport := opts.Transport
	if transport == nil {
		// pooled cleanhttp transport; the retrying wrapper itself is not used
		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = 0
		retryClient.Logger = nil
		transport = retryClient.HTTPClient.Transport
	}

	restyClient := resty.New().
		SetTransport(transport).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetLogger(log.Sugar()).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept-Encoding", AcceptEncoding).
		SetRedirectPolicy(redirectPolicy(opts.MaxRedirects, opts.CheckRedirect))

	settings := opts.Breaker
	settings.IsFailure = countsAgainstHost
	if settings.OnStateChange == nil {
		settings.OnStateChange = func(host string, from, to resilience.State) {
			log.Warn("circuit breaker state changed",
				zap.String("host", host),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		}
	}

	return &Client{
		resty:    restyClient,
		breakers: resilience.NewGroup(settings),
		opts:     opts,
	}
}

func redirectPolicy(max int, check func(*url.URL) error) resty.RedirectPolicy {
	return resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if max <= 0 {
			return http.ErrUseLastResponse
		}
		if len(via) > max {
			return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, max)
		}
		if check != nil {
			if err := check(req.URL); err != nil {
				return &RedirectError{URL: req.URL, Err: err}
			}
		}
		return nil
	})
}

// MaxResponseSize returns the body cap in bytes.
func (c *Client) MaxResponseSize() int64 { return c.opts.MaxResponseSize }

// Breakers exposes the per-host breaker group.
func (c *Client) Breakers() *resilience.Group { return c.breakers }

// Fetch performs req and reads the decoded body. Non-2xx statuses are
// returned as responses, not errors.
func (c *Client) Fetch(ctx context.Context, req *Request) (*Response, error) {
	host := strings.ToLower(req.URL.Hostname())

	var resp *Response
	err := c.breakers.Execute(host, func() error {
		var err error
		resp, err = c.do(ctx, req)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, host, err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := c.resty.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	if len(req.Header) > 0 {
		r.SetHeaderMultiValues(req.Header)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	start := time.Now()
	res, err := r.Execute(method, req.URL.String())
	if err != nil {
		return nil, classify(err)
	}

	raw := res.RawBody()
	defer raw.Close()

	if cl := res.RawResponse.ContentLength; cl > c.opts.MaxResponseSize {
		return nil, fmt.Errorf("%w: content-length %d", ErrTooLarge, cl)
	}

	header := res.Header().Clone()
	var body []byte
	if method != http.MethodHead {
		body, err = readBody(raw, header.Get("Content-Encoding"), c.opts.MaxResponseSize)
		if err != nil {
			return nil, err
		}
	}
	header.Del("Content-Encoding")
	header.Del("Content-Length")

	final := req.URL
	if res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		final = res.RawResponse.Request.URL
	}

	return &Response{
		StatusCode: res.StatusCode(),
		Header:     header,
		Body:       body,
		FinalURL:   final,
		Duration:   time.Since(start),
	}, nil
}
