package persistence

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Backends carries the shared connections some store types need.
type Backends struct {
	// Redis is required by StoreTypeRedis
	Redis redis.UniversalClient
	// DB is required by StoreTypeSQL
	DB *gorm.DB
	// AutoMigrate runs gorm AutoMigrate for StoreTypeSQL
	AutoMigrate bool
}

// NewDiscussionStore creates a DiscussionStore based on the configuration
func NewDiscussionStore(config StoreConfig, backends Backends) (DiscussionStore, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryDiscussionStore(), nil
	case StoreTypeFile:
		return NewFileDiscussionStore(config)
	case StoreTypeRedis:
		if backends.Redis == nil {
			return nil, fmt.Errorf("redis discussion store requires a redis client")
		}
		return NewRedisDiscussionStore(backends.Redis, config), nil
	case StoreTypeSQL:
		return NewSQLDiscussionStore(backends.DB, backends.AutoMigrate)
	default:
		return nil, fmt.Errorf("unsupported discussion store type: %s", config.Type)
	}
}
