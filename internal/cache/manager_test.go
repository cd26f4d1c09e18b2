package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/config"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T, interval time.Duration) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := config.DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	cfg.HealthCheckInterval = interval

	manager, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager(t *testing.T) {
	mr, manager := setupTestRedis(t, 0)

	require.NotNil(t, manager.Client())
	require.NoError(t, manager.Client().Set(context.Background(), "k", "v", 0).Err())
	assert.Equal(t, "v", mustGet(t, mr, "k"))
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

func TestNewManager_Errors(t *testing.T) {
	_, err := NewManager(config.RedisConfig{}, nil)
	assert.ErrorContains(t, err, "not configured")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err = NewManager(config.RedisConfig{Addr: addr}, nil)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestManager_PingAndClose(t *testing.T) {
	mr, manager := setupTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, manager.Ping(ctx))

	mr.SetError("ERR unavailable")
	assert.Error(t, manager.Ping(ctx))
	mr.SetError("")

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())
	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
}

func TestManager_HealthCheckLoopStopsOnClose(t *testing.T) {
	_, manager := setupTestRedis(t, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		_ = manager.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the health check loop")
	}
}

func TestManager_Stats(t *testing.T) {
	_, manager := setupTestRedis(t, 0)

	require.NoError(t, manager.Ping(context.Background()))
	stats := manager.Stats()
	assert.GreaterOrEqual(t, stats.TotalConns, uint32(1))
}

func TestOptions(t *testing.T) {
	cfg := config.RedisConfig{Addr: "redis.internal:6380", DB: 2, PoolSize: 7}
	opts := Options(cfg)
	assert.Equal(t, "redis.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Nil(t, opts.TLSConfig)

	cfg.TLS = true
	opts = Options(cfg)
	require.NotNil(t, opts.TLSConfig)
	assert.Equal(t, "redis.internal", opts.TLSConfig.ServerName)
}
