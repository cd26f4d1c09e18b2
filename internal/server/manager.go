package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🌐 HTTP 服务器管理器
// =============================================================================

type state int

const (
	stateIdle state = iota
	stateRunning
	stateClosed
)

// Config 单个监听端口的服务器配置
type Config struct {
	// Name 日志中区分 api / metrics
	Name string `yaml:"name" json:"name"`
	Addr string `yaml:"addr" json:"addr"`

	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`
	// WriteTimeout 需要覆盖一次完整协作
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes" json:"max_header_bytes"`

	// ShutdownTimeout 超时后取消仍在处理的请求
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Name:            "http",
		Addr:            ":8000",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    15 * time.Minute,
		IdleTimeout:     2 * time.Minute,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Manager 管理一个 http.Server 的监听、运行与优雅关闭
type Manager struct {
	cfg    Config
	srv    *http.Server
	logger *zap.Logger

	// cancelRequests 取消所有进行中请求的 context
	cancelRequests context.CancelFunc
	failed         chan error

	mu    sync.RWMutex
	state state
	ln    net.Listener
}

func NewManager(handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "http"
	}

	reqCtx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg: cfg,
		srv: &http.Server{
			Addr:           cfg.Addr,
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.IdleTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
			BaseContext:    func(net.Listener) context.Context { return reqCtx },
		},
		logger:         logger.With(zap.String("component", "http_server"), zap.String("server", cfg.Name)),
		cancelRequests: cancel,
		failed:         make(chan error, 1),
	}
}

// Start 监听并在后台 serve，不阻塞。关闭后的 Manager 不能再次启动。
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateRunning:
		return errors.New("server already started")
	case stateClosed:
		return errors.New("server is closed")
	}

	ln, err := net.Listen("tcp", m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.cfg.Addr, err)
	}
	m.ln, m.state = ln, stateRunning
	m.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))

	go func() {
		err := m.srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		m.logger.Error("HTTP server failed", zap.Error(err))
		select {
		case m.failed <- err:
		default:
		}
	}()
	return nil
}

// Run 启动后阻塞到 ctx 结束（返回 nil）或 serve 异常退出（返回该错误），随后优雅关闭
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-m.failed:
	}

	shutdownErr := m.Shutdown(context.WithoutCancel(ctx))
	if serveErr != nil {
		return serveErr
	}
	return shutdownErr
}

// Shutdown 可重复调用
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateClosed {
		return nil
	}
	m.state = stateClosed
	m.logger.Info("shutting down HTTP server")

	if m.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
		defer cancel()
	}

	err := m.srv.Shutdown(ctx)
	m.cancelRequests()
	m.ln = nil
	if err != nil {
		m.logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// Addr 启动后返回实际监听地址（":0" 时可拿到分配的端口）
func (m *Manager) Addr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ln != nil {
		return m.ln.Addr().String()
	}
	return m.cfg.Addr
}

func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == stateRunning
}

// RunAll 并发运行多个服务器：任意一个异常退出即关闭其余并返回该错误，ctx 结束时返回 nil
func RunAll(ctx context.Context, managers ...*Manager) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range managers {
		g.Go(func() error { return m.Run(gctx) })
	}
	return g.Wait()
}
