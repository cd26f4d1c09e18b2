package circuitbreaker

import (
	"sync"

	"go.uber.org/zap"
)

// Group 按 responder 名称懒加载熔断器，所有成员共享同一份配置。
type Group struct {
	config *Config
	logger *zap.Logger

	mu       sync.Mutex
	breakers map[string]CircuitBreaker
}

// NewGroup 创建熔断器分组
func NewGroup(config *Config, logger *zap.Logger) *Group {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Group{
		config:   normalize(config),
		logger:   logger,
		breakers: make(map[string]CircuitBreaker),
	}
}

// Get 返回 name 对应的熔断器，不存在时创建
func (g *Group) Get(name string) CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(name, g.config, g.logger)
	g.breakers[name] = cb
	return cb
}

// States 返回所有已创建熔断器的状态快照
func (g *Group) States() map[string]State {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]State, len(g.breakers))
	for name, cb := range g.breakers {
		out[name] = cb.State()
	}
	return out
}
