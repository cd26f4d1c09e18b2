package auth

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/config"
)

// NewTokenStore 按配置创建 TokenStore。redis 类型需要传入客户端。
func NewTokenStore(cfg config.CredentialsConfig, client redis.UniversalClient) (TokenStore, error) {
	switch cfg.Store {
	case "memory":
		return NewMemoryTokenStore(), nil
	case "file":
		return NewFileTokenStore(cfg.FilePath)
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis token store requires a redis client")
		}
		return NewRedisTokenStore(client, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported token store type: %s", cfg.Store)
	}
}

// NewAdapterFromConfig 组装存储、刷新器与适配器
func NewAdapterFromConfig(cfg config.CredentialsConfig, client redis.UniversalClient, logger *zap.Logger) (*Adapter, error) {
	store, err := NewTokenStore(cfg, client)
	if err != nil {
		return nil, err
	}
	refresher := NewRefresher(store, DefaultEndpoints(cfg), logger, WithRefreshTimeout(cfg.RefreshTimeout), WithRefreshSkew(cfg.RefreshSkew))
	return NewAdapter(store, refresher, cfg.RefreshSkew, logger), nil
}
