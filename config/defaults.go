// =============================================================================
// 📦 CHIKA 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:        DefaultServerConfig(),
		Log:           DefaultLogConfig(),
		Telemetry:     DefaultTelemetryConfig(),
		Database:      DefaultDatabaseConfig(),
		Redis:         DefaultRedisConfig(),
		Store:         DefaultStoreConfig(),
		Collaboration: DefaultCollaborationConfig(),
		Router:        DefaultRouterConfig(),
		Responders:    DefaultRespondersConfig(),
		Credentials:   DefaultCredentialsConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8000,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    15 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		CORSAllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
		},
		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "chika",
		SampleRate:   0.1,
		Insecure:     true,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "chika",
		Name:            "./data/chika.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:                "localhost:6379",
		DB:                  0,
		PoolSize:            10,
		MinIdleConns:        2,
		HealthCheckInterval: 30 * time.Second,
	}
}

// DefaultStoreConfig 返回默认讨论存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:      "memory",
		BaseDir:   "./data",
		KeyPrefix: "chika:",
	}
}

// DefaultCollaborationConfig 返回默认协作配置
func DefaultCollaborationConfig() CollaborationConfig {
	return CollaborationConfig{
		MaxRounds:       3,
		RoomLockTimeout: 30 * time.Second,
		Timeout:         12 * time.Minute,
	}
}

// DefaultRouterConfig 返回默认路由配置
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CallTimeout: 120 * time.Second,
		Breaker: BreakerConfig{
			Enabled:      true,
			Threshold:    5,
			ResetTimeout: time.Minute,
		},
	}
}

// DefaultRespondersConfig 返回默认 responder 配置。
// 云端 responder 默认允许，但只有配置了 API Key 或 OAuth 后才会真正启用。
func DefaultRespondersConfig() RespondersConfig {
	return RespondersConfig{
		Ollama: ResponderConfig{Enabled: true},
		Claude: ResponderConfig{Enabled: true},
		GPT:    ResponderConfig{Enabled: true},
		Gemini: ResponderConfig{Enabled: true},
		Grok:   ResponderConfig{Enabled: true},
	}
}

// DefaultCredentialsConfig 返回默认凭据配置
func DefaultCredentialsConfig() CredentialsConfig {
	return CredentialsConfig{
		Store:             "file",
		FilePath:          "./data/auth_tokens.json",
		KeyPrefix:         "chika:tokens:",
		RefreshTimeout:    15 * time.Second,
		RefreshSkew:       time.Minute,
		AnthropicClientID: "9d1c250a-e61b-44d9-88ed-5944d1962f5e",
		OpenAIClientID:    "chika-local",
	}
}
