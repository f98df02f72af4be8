// Package relay serves the ingredient analysis API. It forwards each
// ingredient list to the upstream language model through the analyzer and
// relays the answer to the caller, with cross-origin access enabled.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/foodlens/pkg/analysis"
	"github.com/papercomputeco/foodlens/pkg/config"
	"github.com/papercomputeco/foodlens/pkg/llm"
	"github.com/papercomputeco/foodlens/pkg/merkle"
	"github.com/papercomputeco/foodlens/pkg/storage"
	"github.com/papercomputeco/foodlens/pkg/upstream"
)

// LivenessMessage is the body of GET /.
const LivenessMessage = "Food Harmfulness API is running!"

// Relay is the HTTP front of the analyzer. It holds no per-request state.
type Relay struct {
	config   Config
	analyzer *analysis.Service
	storer   merkle.Storer
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *httpMetrics
	server   *fiber.App
}

// New wires the relay from a validated configuration.
func New(cfg *config.Config, logger *zap.Logger) (*Relay, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	analyzer, storer, err := NewAnalyzer(cfg, registry, logger)
	if err != nil {
		return nil, err
	}

	return newRelay(Config{
		ListenAddr:   cfg.Listen,
		AllowOrigins: cfg.CORS.AllowOrigins,
	}, analyzer, storer, registry, logger), nil
}

// NewAnalyzer builds the record store, upstream client and analyzer described
// by cfg. The caller owns the returned storer, which is nil when recording is
// disabled. registry may be nil.
func NewAnalyzer(cfg *config.Config, registry prometheus.Registerer, logger *zap.Logger) (*analysis.Service, merkle.Storer, error) {
	revision, err := cfg.Revision()
	if err != nil {
		return nil, nil, err
	}

	client, err := upstream.NewClient(upstream.Config{
		BaseURL:      cfg.Upstream.URL,
		APIKey:       cfg.Upstream.APIKey,
		Timeout:      cfg.Upstream.Timeout,
		MaxRetries:   cfg.Upstream.MaxRetries,
		RetryBackoff: cfg.Upstream.RetryBackoff,
		RateLimit:    cfg.Upstream.RateLimit,
		RateBurst:    cfg.Upstream.RateBurst,
	}, nil, logger.Named("upstream"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	storer, err := storage.Open(context.Background(), cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	if storer != nil {
		logger.Info("recording analyses", zap.String("backend", cfg.Storage.Backend))
	}

	opts := analysis.Options{
		Storer:  storer,
		Metrics: analysis.NewMetrics(registry),
	}
	if cfg.Cache.Enabled {
		opts.CacheTTL = cfg.Cache.TTL
	}

	analyzer, err := analysis.New(client, analysis.Profile{Revision: revision, Model: cfg.Upstream.Model}, opts, logger)
	if err != nil {
		closeStorer(storer)
		return nil, nil, err
	}

	return analyzer, storer, nil
}

func newRelay(config Config, analyzer *analysis.Service, storer merkle.Storer, registry *prometheus.Registry, logger *zap.Logger) *Relay {
	if config.AllowOrigins == "" {
		config.AllowOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	r := &Relay{
		config:   config,
		analyzer: analyzer,
		storer:   storer,
		logger:   logger,
		registry: registry,
		metrics:  newHTTPMetrics(registry),
		server:   app,
	}

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
	}))
	app.Use(r.observe)

	// Liveness
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(LivenessMessage)
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	app.Post("/analyze", r.handleAnalyze)

	// Record inspection endpoints
	if storer != nil {
		app.Get("/records/stats", r.handleRecordStats)
		app.Get("/records/node/:hash", r.handleGetNode)
		app.Get("/records/history", r.handleListHistories)
		app.Get("/records/history/:hash", r.handleGetHistory)
	}

	return r
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	p := r.analyzer.Profile()
	r.logger.Info("starting relay server",
		zap.String("listen", r.config.ListenAddr),
		zap.String("revision", p.Revision.Name),
		zap.String("model", p.Model),
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener serves on an existing listener.
func (r *Relay) RunWithListener(ln net.Listener) error {
	return r.server.Listener(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (r *Relay) Shutdown(ctx context.Context) error {
	return r.server.ShutdownWithContext(ctx)
}

// Close releases the record store.
func (r *Relay) Close() error {
	if r.storer == nil {
		return nil
	}
	return r.storer.Close()
}

// Analyzer exposes the analyzer so callers can swap its profile.
func (r *Relay) Analyzer() *analysis.Service {
	return r.analyzer
}

// Reload applies the prompt revision and model from cfg. Other settings
// need a restart.
func (r *Relay) Reload(cfg *config.Config) error {
	revision, err := cfg.Revision()
	if err != nil {
		return err
	}
	r.analyzer.SetProfile(analysis.Profile{Revision: revision, Model: cfg.Upstream.Model})
	return nil
}

// handleAnalyze relays an ingredient list upstream.
func (r *Relay) handleAnalyze(c *fiber.Ctx) error {
	req, err := analysis.DecodeRequest(c.Body())
	if err != nil {
		return r.analysisFailed(c, err)
	}

	result, err := r.analyzer.Analyze(c.UserContext(), req.Ingredients)
	if err != nil {
		return r.analysisFailed(c, err)
	}

	c.Set("X-Foodlens-Revision", result.Revision)
	c.Set("X-Foodlens-Record", result.VerdictHash)
	if result.Cached {
		c.Set("X-Foodlens-Cache", "hit")
	} else {
		c.Set("X-Foodlens-Cache", "miss")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(result.Body)
}

// analysisFailed maps input errors to 400 and everything else to 500.
func (r *Relay) analysisFailed(c *fiber.Ctx, err error) error {
	fields := []zap.Field{
		zap.String("request_id", requestID(c)),
		zap.Error(err),
	}

	if analysis.IsInputError(err) {
		r.logger.Warn("rejected analysis request", fields...)
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	var ue *analysis.UpstreamError
	if errors.As(err, &ue) && ue.StatusCode != 0 {
		fields = append(fields, zap.Int("upstream_status", ue.StatusCode))
	}
	r.logger.Error("analysis failed", fields...)
	return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: err.Error()})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}

func closeStorer(s merkle.Storer) {
	if s != nil {
		_ = s.Close()
	}
}
