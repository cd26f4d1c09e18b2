package circuitbreaker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrCircuitOpen            = errors.New("circuit breaker is open")
	ErrTooManyCallsInHalfOpen = errors.New("too many calls in half-open state")
)

// State 熔断器状态：Closed 正常放行，Open 熔断中，HalfOpen 放行少量试探请求
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{StateClosed: "Closed", StateOpen: "Open", StateHalfOpen: "HalfOpen"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

const (
	defaultThreshold    = 5
	defaultResetTimeout = time.Minute
)

// Config 熔断器配置，零值字段使用默认值
type Config struct {
	// Threshold 连续失败多少次后熔断
	Threshold int
	// ResetTimeout Open 持续多久后进入 HalfOpen
	ResetTimeout time.Duration
	// HalfOpenMaxCalls HalfOpen 期间最多放行的试探请求
	HalfOpenMaxCalls int
	// OnStateChange 在独立 goroutine 中调用，name 为所属 responder
	OnStateChange func(name string, from State, to State)
}

func DefaultConfig() *Config {
	return &Config{
		Threshold:        defaultThreshold,
		ResetTimeout:     defaultResetTimeout,
		HalfOpenMaxCalls: 1,
	}
}

func normalize(config *Config) *Config {
	c := DefaultConfig()
	if config == nil {
		return c
	}
	c.OnStateChange = config.OnStateChange
	if config.Threshold > 0 {
		c.Threshold = config.Threshold
	}
	if config.ResetTimeout > 0 {
		c.ResetTimeout = config.ResetTimeout
	}
	if config.HalfOpenMaxCalls > 0 {
		c.HalfOpenMaxCalls = config.HalfOpenMaxCalls
	}
	return c
}

// CircuitBreaker 路由对每个 responder 先 Allow，拿到结果后 Record；Call 是二者的组合
type CircuitBreaker interface {
	Allow() error
	// Record 客户端错误（鉴权、参数、配额、取消）不计入失败
	Record(err error)
	Call(ctx context.Context, fn func(ctx context.Context) error) error
	State() State
	Reset()
}

type breaker struct {
	name   string
	cfg    *Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int       // 连续失败次数
	openedAt time.Time // 最近一次失败的时间
	probes   int       // HalfOpen 期间已放行的请求
}

func NewCircuitBreaker(name string, config *Config, logger *zap.Logger) CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &breaker{
		name:   name,
		cfg:    normalize(config),
		logger: logger.With(zap.String("component", "circuit_breaker"), zap.String("responder", name)),
		now:    time.Now,
	}
}

func (b *breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.probes = 1
		b.logger.Info("circuit breaker half-open")
	case StateHalfOpen:
		if b.probes >= b.cfg.HalfOpenMaxCalls {
			return ErrTooManyCallsInHalfOpen
		}
		b.probes++
	}
	return nil
}

func (b *breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || isClientError(err) {
		if b.state == StateHalfOpen {
			b.logger.Info("circuit breaker closed", zap.Int("half_open_calls", b.probes))
			b.transition(StateClosed)
		}
		b.failures, b.probes = 0, 0
		return
	}

	b.failures++
	b.openedAt = b.now()
	switch {
	case b.state == StateHalfOpen:
		b.logger.Warn("circuit breaker probe failed, reopening")
		b.transition(StateOpen)
		b.probes = 0
	case b.state == StateClosed && b.failures >= b.cfg.Threshold:
		b.logger.Warn("circuit breaker opened",
			zap.Int("failure_count", b.failures),
			zap.Int("threshold", b.cfg.Threshold),
		)
		b.transition(StateOpen)
	}
}

func (b *breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.Record(err)
	return err
}

// transition 调用方持有 mu
func (b *breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if cb := b.cfg.OnStateChange; cb != nil {
		go cb(b.name, from, to)
	}
}

func (b *breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset 手动恢复到 Closed
func (b *breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
	b.failures, b.probes = 0, 0
}

// clientErrorCodes llm.ErrorCode 中不代表上游故障的错误码
var clientErrorCodes = []string{"INVALID_REQUEST", "UNAUTHORIZED", "FORBIDDEN", "QUOTA_EXCEEDED"}

func isClientError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	msg := err.Error()
	for _, code := range clientErrorCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
