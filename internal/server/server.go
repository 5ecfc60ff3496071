// Package server wires the riskwatch components into one HTTP server.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/mbd888/riskwatch/internal/circuitbreaker"
	"github.com/mbd888/riskwatch/internal/config"
	"github.com/mbd888/riskwatch/internal/engagement"
	"github.com/mbd888/riskwatch/internal/health"
	"github.com/mbd888/riskwatch/internal/interventions"
	"github.com/mbd888/riskwatch/internal/logging"
	"github.com/mbd888/riskwatch/internal/metrics"
	"github.com/mbd888/riskwatch/internal/offers"
	"github.com/mbd888/riskwatch/internal/portfolio"
	"github.com/mbd888/riskwatch/internal/predictions"
	"github.com/mbd888/riskwatch/internal/ratelimit"
	"github.com/mbd888/riskwatch/internal/realtime"
	"github.com/mbd888/riskwatch/internal/roster"
	"github.com/mbd888/riskwatch/internal/security"
	"github.com/mbd888/riskwatch/internal/traces"
	"github.com/mbd888/riskwatch/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg     *config.Config
	version string

	roster        *roster.Service
	portfolio     *portfolio.Service
	interventions *interventions.Service
	composer      *engagement.Composer
	predictions   predictions.Fetcher
	realtimeHub   *realtime.Hub
	health        *health.Registry
	rateLimiter   ratelimit.Backend

	db             *sql.DB       // nil if using in-memory
	redis          *redis.Client // nil unless REDIS_URL is set
	router         *gin.Engine
	httpSrv        *http.Server
	logger         *slog.Logger
	stopTracing    func(context.Context) error
	cancelRunCtx   context.CancelFunc
	drainDelay     time.Duration
	skipRosterSeed bool

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by /health and build_info.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithPredictionFetcher replaces the HTTP client for the ML collaborator.
func WithPredictionFetcher(f predictions.Fetcher) Option {
	return func(s *Server) {
		s.predictions = f
	}
}

// WithDrainDelay sets how long Shutdown waits before closing listeners.
func WithDrainDelay(d time.Duration) Option {
	return func(s *Server) {
		s.drainDelay = d
	}
}

// WithoutRosterSeed starts with an empty roster regardless of config.
func WithoutRosterSeed() Option {
	return func(s *Server) {
		s.skipRosterSeed = true
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		version:    "dev",
		logger:     logging.New(cfg.LogLevel, cfg.LogFormat),
		drainDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	stopTracing, err := traces.Init(ctx, cfg.OTLPEndpoint, s.version, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.stopTracing = stopTracing

	s.realtimeHub = realtime.NewHub(s.logger, cfg.CORSOrigins...)

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		customerStore     roster.Store
		interventionStore interventions.Store
		storage           = "memory"
	)
	if cfg.UsesPostgres() {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, s.release(fmt.Errorf("failed to open database: %w", err))
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, s.release(fmt.Errorf("failed to connect to database: %w", err))
		}
		s.db = db
		storage = "postgres"

		rs := roster.NewPostgresStore(db)
		if err := rs.Migrate(ctx); err != nil {
			return nil, s.release(fmt.Errorf("failed to migrate roster store: %w", err))
		}
		is := interventions.NewPostgresStore(db)
		if err := is.Migrate(ctx); err != nil {
			return nil, s.release(fmt.Errorf("failed to migrate intervention store: %w", err))
		}
		customerStore, interventionStore = rs, is
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		customerStore = roster.NewMemoryStore()
		interventionStore = interventions.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	if cfg.UsesRedis() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, s.release(fmt.Errorf("failed to parse redis url: %w", err))
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, s.release(fmt.Errorf("failed to connect to redis: %w", err))
		}
		s.redis = rdb
		s.rateLimiter = ratelimit.NewRedis(rdb, ratelimit.DefaultConfig())
		s.logger.Info("using Redis rate limiting", "addr", opts.Addr)
	} else {
		s.rateLimiter = ratelimit.New(ratelimit.DefaultConfig())
	}

	s.roster = roster.NewService(customerStore).WithEventPublisher(s.realtimeHub)
	s.interventions = interventions.NewService(interventionStore).
		WithCustomers(s.roster).
		WithEventPublisher(s.realtimeHub)
	s.portfolio = portfolio.NewService(s.roster, s.interventions)
	s.composer = engagement.NewComposer(s.roster, s.interventions).WithDueDateLabel(cfg.DueDateLabel)

	if err := s.seedRoster(ctx); err != nil {
		return nil, s.release(err)
	}

	if s.predictions == nil {
		s.predictions = predictions.NewClient(cfg.PredictionURL, cfg.PredictionTimeout).
			WithBreaker(circuitbreaker.New(circuitbreaker.DefaultThreshold, circuitbreaker.DefaultCoolDown))
	}

	s.health = health.NewRegistry(5 * time.Second)
	if s.db != nil {
		s.health.Register("database", health.Ping(s.db))
	}
	if s.redis != nil {
		s.health.RegisterOptional("redis", func(ctx context.Context) error {
			return s.redis.Ping(ctx).Err()
		})
	}
	s.health.RegisterOptional("prediction_service", func(ctx context.Context) error {
		if p, ok := s.predictions.(predictions.Pinger); ok {
			return p.Ping(ctx)
		}
		_, err := s.predictions.Fetch(ctx)
		return err
	})

	metrics.BuildInfo.WithLabelValues(s.version, storage).Set(1)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

// release closes whatever New opened before failing and returns err.
func (s *Server) release(err error) error {
	if s.redis != nil {
		_ = s.redis.Close()
		s.redis = nil
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	if s.stopTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.stopTracing(ctx)
	}
	return err
}

// seedRoster loads a generated roster when the store is empty.
func (s *Server) seedRoster(ctx context.Context) error {
	existing, err := s.roster.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read roster: %w", err)
	}
	if len(existing) > 0 || s.skipRosterSeed || s.cfg.RosterSize == 0 {
		metrics.RosterSize.Set(float64(len(existing)))
		return nil
	}

	customers := roster.NewGenerator(s.cfg.RosterSeed).Generate(s.cfg.RosterSize)
	if err := s.roster.Load(ctx, customers); err != nil {
		return fmt.Errorf("failed to seed roster: %w", err)
	}
	metrics.RosterSize.Set(float64(len(customers)))
	s.logger.Info("roster seeded", "customers", len(customers), "seed", s.cfg.RosterSeed)
	return nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.CORSOrigins))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	s.router.Use(ratelimit.Middleware(s.rateLimiter))

	s.router.Use(metrics.Middleware())
	s.router.Use(logging.AccessLog())
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/health/checks", s.checksHandler)
	s.router.GET("/metrics", metrics.Handler())
	s.router.GET("/ws", gin.WrapF(s.realtimeHub.HandleWebSocket))

	predictionHandler := predictions.NewHandler(s.predictions)
	predictionHandler.RegisterLegacyRoutes(s.router)

	v1 := s.router.Group("/v1")
	v1.Use(validation.IDParamMiddleware("id"))

	rosterHandler := roster.NewHandler(s.roster)
	rosterHandler.RegisterRoutes(v1)
	rosterHandler.RegisterAdminRoutes(v1.Group("/admin"))

	portfolio.NewHandler(s.portfolio).RegisterRoutes(v1)
	offers.NewHandler(s.roster, s.cfg.DueDateLabel).RegisterRoutes(v1)
	interventions.NewHandler(s.interventions).RegisterRoutes(v1)
	engagement.NewHandler(s.composer).RegisterRoutes(v1)
	predictionHandler.RegisterRoutes(v1)

	v1.GET("/customer-360", s.customer360Handler)
	v1.GET("/stream/stats", s.streamStatsHandler)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "running",
		"version":   s.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) checksHandler(c *gin.Context) {
	healthy, checks := s.health.CheckAll(c.Request.Context())
	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

func (s *Server) streamStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stream": s.realtimeHub.Stats()})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)
	go s.composer.Run(runCtx, engagement.DefaultSweepInterval)
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	s.ready.Store(true)
	s.logger.Info("server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		cancel()
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(s.drainDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			errs = append(errs, err)
		}
	}
	if s.stopTracing != nil {
		if err := s.stopTracing(ctx); err != nil {
			s.logger.Error("tracer shutdown error", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("redis close error", "error", err)
		}
	}

	s.logger.Info("server stopped")
	return errors.Join(errs...)
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
