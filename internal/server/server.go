package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webgate/internal/api/middleware"
	handlers "github.com/GriffinCanCode/webgate/internal/http"
	"github.com/GriffinCanCode/webgate/internal/infrastructure/config"
	"github.com/GriffinCanCode/webgate/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webgate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webgate/internal/policy"
	"github.com/GriffinCanCode/webgate/internal/proxy"
	"github.com/GriffinCanCode/webgate/internal/rewrite"
	"github.com/GriffinCanCode/webgate/internal/token"
	"github.com/GriffinCanCode/webgate/internal/upstream"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	ledger   *token.Ledger
	upstream *upstream.Client
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customises server construction
type Option func(*options)

type options struct {
	logger    *logging.Logger
	registry  *prometheus.Registry
	transport http.RoundTripper
}

// WithLogger sets the logger; defaults to the production logger
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry sets the Prometheus registry; defaults to a fresh one
func WithRegistry(r *prometheus.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithTransport replaces the upstream transport
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewDefault()
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	logger := o.logger

	logger.Info("Initializing webgate",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.Bool("token_required", cfg.Token.Required),
	)

	metrics := monitoring.NewMetrics(o.registry)

	cats, err := cfg.Policy.Categories()
	if err != nil {
		return nil, fmt.Errorf("failed to load allow-list: %w", err)
	}
	pol, err := policy.New(policyCategories(cats))
	if err != nil {
		return nil, fmt.Errorf("invalid allow-list: %w", err)
	}
	logger.Info("Domain policy loaded",
		zap.Strings("categories", pol.Categories()),
		zap.Any("entries", pol.Summary()),
	)

	gate := policy.NewGate(cfg.Policy.AuthorizedHosts...)
	rewriter, err := rewrite.New(cfg.Policy.DirectHosts, rewrite.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("invalid direct hosts: %w", err)
	}

	ledger := token.NewLedger(token.Settings{
		TTL:         cfg.Token.TTL,
		MaxRequests: cfg.Token.MaxRequests,
	})

	client := upstream.New(upstream.Options{
		Timeout:         cfg.Upstream.Timeout,
		MaxResponseSize: cfg.Upstream.MaxResponseSize,
		MaxRedirects:    cfg.Upstream.MaxRedirects,
		UserAgent:       cfg.Upstream.UserAgent,
		CheckRedirect:   pol.CheckURL,
		Transport:       o.transport,
		Logger:          logger,
	})
	if cfg.Upstream.RetryAttempts > 0 {
		logger.Info("Upstream retries are configured but not applied",
			zap.Int("retry_attempts", cfg.Upstream.RetryAttempts),
			zap.Duration("retry_delay", cfg.Upstream.RetryDelay),
		)
	}

	mediator := proxy.New(proxy.Deps{
		Policy:   pol,
		Gate:     gate,
		Ledger:   ledger,
		Rewriter: rewriter,
		Fetcher:  client,
		Metrics:  metrics,
		Logger:   logger,
	}, proxy.Config{
		TokenRequired:        cfg.Token.Required,
		PublicHost:           cfg.Server.PublicHost,
		CompressionThreshold: cfg.Upstream.CompressionThreshold,
		MaxRequestBody:       cfg.Upstream.MaxResponseSize,
	})

	h := handlers.NewHandlers(handlers.Deps{
		Policy:   pol,
		Gate:     gate,
		Ledger:   ledger,
		Metrics:  metrics,
		Breakers: client.Breakers(),
	}, handlers.Config{
		TokenRequired: cfg.Token.Required,
		PublicHost:    cfg.Server.PublicHost,
	})

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		proxy.WriteError(c, proxy.Internal(fmt.Errorf("panic: %v", recovered)))
	}))
	router.Use(monitoring.Middleware(metrics, "/metrics"))

	// Register routes
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/metrics", monitoring.Handler(o.registry))

	api := router.Group("/api")
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		api.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			OnLimit:           proxy.RateLimited,
		}))
	}

	// The proxy sets its own wildcard CORS headers
	api.Match(proxy.Methods, "/proxy", mediator.Handle)

	cors := middleware.CORS(middleware.DefaultCORSConfig(gate.AllowsOrigin))
	api.GET("/token", cors, h.Token)
	api.OPTIONS("/token", cors)
	api.GET("/domains", cors, h.Domains)
	api.OPTIONS("/domains", cors)

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		ledger:   ledger,
		upstream: client,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func policyCategories(cats []config.Category) []policy.Category {
	out := make([]policy.Category, 0, len(cats))
	for _, c := range cats {
		out = append(out, policy.Category{Name: c.Name, Domains: c.Domains})
	}
	return out
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start launches the background token sweep
func (s *Server) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.ledger.Sweep(ctx, s.config.Token.SweepInterval, func(removed, remaining int) {
			s.metrics.SetTokensActive(remaining)
			s.upstream.Breakers().Reset()
			if removed > 0 {
				s.logger.Debug("Swept access tokens",
					zap.Int("removed", removed),
					zap.Int("remaining", remaining),
				)
			}
		})
	}()
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, drains in-flight ones and stops the sweep
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.http.Shutdown(ctx)
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	// Sync logger before exit
	_ = s.logger.Sync()

	if err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
