package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/agent/collaboration"
	"github.com/ruipedro-pinheiro/CHIKA/agent/persistence"
	"github.com/ruipedro-pinheiro/CHIKA/api/handlers"
	"github.com/ruipedro-pinheiro/CHIKA/api/ws"
	"github.com/ruipedro-pinheiro/CHIKA/auth"
	"github.com/ruipedro-pinheiro/CHIKA/config"
	"github.com/ruipedro-pinheiro/CHIKA/internal/cache"
	"github.com/ruipedro-pinheiro/CHIKA/internal/database"
	"github.com/ruipedro-pinheiro/CHIKA/internal/metrics"
	"github.com/ruipedro-pinheiro/CHIKA/internal/migration"
	"github.com/ruipedro-pinheiro/CHIKA/internal/server"
	"github.com/ruipedro-pinheiro/CHIKA/internal/telemetry"
	"github.com/ruipedro-pinheiro/CHIKA/llm"
	"github.com/ruipedro-pinheiro/CHIKA/llm/circuitbreaker"
	llmfactory "github.com/ruipedro-pinheiro/CHIKA/llm/factory"
)

const metricsNamespace = "chika"

// 不需要认证、日志降级的运维端点
var publicPaths = []string{"/health", "/healthz", "/ready", "/version"}

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 组装 CHIKA 的全部组件：存储、凭据、路由、协作引擎、WebSocket hub 与 HTTP 服务
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	registry  *prometheus.Registry
	collector *metrics.Collector
	otel      *telemetry.Providers

	redis *cache.Manager
	pool  *database.PoolManager
	store persistence.DiscussionStore

	credentials *auth.Adapter
	breakers    *circuitbreaker.Group
	router      *llm.Router
	hub         *ws.Hub
	engine      *collaboration.Engine

	health *handlers.HealthHandler

	httpManager    *server.Manager
	metricsManager *server.Manager
}

// NewServer 按配置初始化所有组件。失败时释放已经创建的资源。
// ctx 控制限流器等后台 goroutine 的生命周期。
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}

	if err := s.init(ctx); err != nil {
		s.release(context.WithoutCancel(ctx))
		return nil, err
	}
	return s, nil
}

func (s *Server) init(ctx context.Context) error {
	// 1. 可观测性
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.collector = metrics.NewCollector(metricsNamespace, s.registry, s.logger)

	otelProviders, err := telemetry.Init(ctx, s.cfg.Telemetry, Version, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry, continuing without it", zap.Error(err))
		otelProviders = &telemetry.Providers{}
	}
	s.otel = otelProviders

	// 2. 共享连接
	if err := s.initRedis(); err != nil {
		return err
	}
	if err := s.initDatabase(); err != nil {
		return err
	}

	// 3. 讨论存储
	if err := s.initStore(); err != nil {
		return err
	}

	// 4. 凭据与路由
	if err := s.initRouter(); err != nil {
		return err
	}

	// 5. 协作引擎与 WebSocket hub
	s.hub = ws.NewHub(ws.Config{
		AllowedOrigins: s.cfg.Server.CORSAllowedOrigins,
	}, s.collector, s.logger)

	s.engine = collaboration.NewEngine(s.router, collaboration.Config{
		MaxRounds:       s.cfg.Collaboration.MaxRounds,
		RoomLockTimeout: s.cfg.Collaboration.RoomLockTimeout,
		Timeout:         s.cfg.Collaboration.Timeout,
	}, collaboration.Options{
		Store:    s.store,
		Observer: s.collector,
		OnEvent:  s.hub.Publish,
		Logger:   s.logger,
	})

	// 6. HTTP 服务
	s.initHealth()
	s.initServers(ctx)
	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

func (s *Server) needsRedis() bool {
	return s.cfg.Store.Type == string(persistence.StoreTypeRedis) || s.cfg.Credentials.Store == "redis"
}

func (s *Server) initRedis() error {
	if !s.needsRedis() {
		return nil
	}
	m, err := cache.NewManager(s.cfg.Redis, s.logger)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	s.redis = m
	return nil
}

func (s *Server) initDatabase() error {
	if s.cfg.Store.Type != string(persistence.StoreTypeSQL) {
		return nil
	}

	if s.cfg.Database.AutoMigrate {
		if err := migrateSchema(s.cfg.Database, s.logger); err != nil {
			return err
		}
	}

	db, err := database.Open(s.cfg.Database, s.logger)
	if err != nil {
		return err
	}
	pool, err := database.NewPoolManager(db, database.PoolConfigFrom(s.cfg.Database), s.logger,
		database.WithStatsRecorder(s.cfg.Database.Driver, s.collector))
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	s.pool = pool
	return nil
}

// migrateSchema 用独立连接把 schema 迁移到最新版本后关闭
func migrateSchema(dbCfg config.DatabaseConfig, logger *zap.Logger) error {
	m, err := migration.NewMigratorFromDatabaseConfig(dbCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("failed to close migrator", zap.Error(err))
		}
	}()

	ctx := context.Background()
	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, dirty, err := m.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Info("database schema ready", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func (s *Server) initStore() error {
	backends := persistence.Backends{}
	if s.redis != nil {
		backends.Redis = s.redis.Client()
	}
	if s.pool != nil {
		backends.DB = s.pool.DB()
	}

	store, err := persistence.NewDiscussionStore(persistence.StoreConfig{
		Type:      persistence.StoreType(s.cfg.Store.Type),
		BaseDir:   s.cfg.Store.BaseDir,
		KeyPrefix: s.cfg.Store.KeyPrefix,
		TTL:       s.cfg.Store.TTL,
	}, backends)
	if err != nil {
		return fmt.Errorf("failed to create discussion store: %w", err)
	}
	s.store = store
	s.logger.Info("discussion store ready", zap.String("type", s.cfg.Store.Type))
	return nil
}

func (s *Server) initRouter() error {
	var client redis.UniversalClient
	if s.redis != nil {
		client = s.redis.Client()
	}
	adapter, err := auth.NewAdapterFromConfig(s.cfg.Credentials, client, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create credential adapter: %w", err)
	}
	s.credentials = adapter

	if bc := s.cfg.Router.Breaker; bc.Enabled {
		s.breakers = circuitbreaker.NewGroup(&circuitbreaker.Config{
			Threshold:        bc.Threshold,
			ResetTimeout:     bc.ResetTimeout,
			HalfOpenMaxCalls: 1,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				s.logger.Warn("responder circuit breaker state changed",
					zap.String("responder", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		}, s.logger)
	}

	deployments := llmfactory.BuildDeployments(s.cfg.Responders, s.cfg.Router.CallTimeout, s.logger)
	s.router = llm.NewRouter(deployments, llm.RouterOptions{
		CallTimeout: s.cfg.Router.CallTimeout,
		Credentials: s.credentials,
		Breakers:    s.breakers,
		Observer:    s.collector,
		Logger:      s.logger,
	})
	return nil
}

func (s *Server) initHealth() {
	s.health = handlers.NewHealthHandler(handlers.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}, s.logger)

	s.health.RegisterCheck(handlers.NewCheck("store", s.store.Ping))
	if s.redis != nil {
		s.health.RegisterCheck(handlers.NewCheck("redis", s.redis.Ping))
	}
	if s.pool != nil {
		s.health.RegisterCheck(handlers.NewCheck("database", s.pool.Ping))
	}
}

// =============================================================================
// 🌐 HTTP 路由
// =============================================================================

// routes 注册全部 API 与运维端点
func (s *Server) routes() *http.ServeMux {
	collab := handlers.NewCollaborationHandler(s.engine, s.logger)
	discussions := handlers.NewDiscussionHandler(s.store, s.logger)
	providers := handlers.NewProviderHandler(s.router, s.credentials, s.breakers, s.logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health.HandleHealth)
	mux.HandleFunc("GET /healthz", s.health.HandleHealth)
	mux.HandleFunc("GET /ready", s.health.HandleReady)
	mux.HandleFunc("GET /version", s.health.HandleVersion)

	mux.HandleFunc("POST /api/v1/rooms/{room}/collaborate", collab.HandleCollaborate)
	mux.HandleFunc("GET /api/v1/rooms/{room}/discussions", discussions.HandleListByRoom)
	mux.Handle("GET /api/v1/rooms/{room}/ws", s.hub)
	mux.HandleFunc("GET /api/v1/discussions/{id}", discussions.HandleGet)
	mux.HandleFunc("GET /api/v1/providers", providers.HandleList)

	return mux
}

// Handler 返回带完整中间件链的 API handler
func (s *Server) Handler(ctx context.Context) http.Handler {
	sc := s.cfg.Server
	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(),
		RequestLogger(s.logger, publicPaths),
		MetricsMiddleware(s.collector),
		CORS(sc.CORSAllowedOrigins),
	}
	if sc.RateLimitRPS > 0 {
		chain = append(chain, RateLimiter(ctx, float64(sc.RateLimitRPS), sc.RateLimitBurst, s.logger))
	}
	if len(sc.APIKeys) > 0 {
		chain = append(chain, APIKeyAuth(sc.APIKeys, publicPaths, sc.AllowQueryAPIKey, s.logger))
	}
	if sc.JWT.Enabled() {
		chain = append(chain, JWTAuth(sc.JWT, publicPaths, sc.AllowQueryAPIKey, s.logger))
	}
	if len(sc.APIKeys) == 0 && !sc.JWT.Enabled() {
		s.logger.Warn("no API keys or JWT configured, API is unauthenticated")
	}
	return Chain(s.routes(), chain...)
}

// metricsHandler 暴露自定义 registry 的 Prometheus 指标
func (s *Server) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry:          s.registry,
		ErrorLog:          zap.NewStdLog(s.logger),
		EnableOpenMetrics: true,
	}))
	return mux
}

func (s *Server) initServers(ctx context.Context) {
	sc := s.cfg.Server
	s.httpManager = server.NewManager(s.Handler(ctx), server.Config{
		Name:            "api",
		Addr:            fmt.Sprintf(":%d", sc.HTTPPort),
		ReadTimeout:     sc.ReadTimeout,
		WriteTimeout:    sc.WriteTimeout,
		IdleTimeout:     2 * sc.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: sc.ShutdownTimeout,
	}, s.logger)

	if sc.MetricsPort > 0 {
		s.metricsManager = server.NewManager(s.metricsHandler(), server.Config{
			Name:            "metrics",
			Addr:            fmt.Sprintf(":%d", sc.MetricsPort),
			ReadTimeout:     sc.ReadTimeout,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: sc.ShutdownTimeout,
		}, s.logger)
	}
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 运行 API 与 metrics 服务器直到 ctx 结束或任一服务器异常退出，然后释放全部资源。
func (s *Server) Run(ctx context.Context) error {
	// 先断开 WebSocket 客户端，HTTP Shutdown 不会等待已劫持的连接
	stopHub := context.AfterFunc(ctx, s.hub.Close)
	defer stopHub()

	managers := []*server.Manager{s.httpManager}
	if s.metricsManager != nil {
		managers = append(managers, s.metricsManager)
	}

	s.logger.Info("CHIKA serving",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	runErr := server.RunAll(ctx, managers...)

	s.release(context.WithoutCancel(ctx))
	return runErr
}

// release 按依赖的逆序关闭组件
func (s *Server) release(ctx context.Context) {
	s.logger.Info("Starting graceful shutdown...")

	if s.hub != nil {
		s.hub.Close()
	}

	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.pool != nil {
		errs = append(errs, s.pool.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.otel != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		errs = append(errs, s.otel.Shutdown(shutdownCtx))
		cancel()
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("shutdown completed with errors", zap.Error(err))
		return
	}
	s.logger.Info("Graceful shutdown completed")
}
