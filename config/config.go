package config

import (
	"fmt"
	"time"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 CHIKA 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Database 数据库配置（store.type=sql 时使用）
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis 配置（redis 讨论存储与 redis token 存储共用）
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Store 讨论存储配置
	Store StoreConfig `yaml:"store" env:"STORE"`

	// Collaboration 协作引擎配置
	Collaboration CollaborationConfig `yaml:"collaboration" env:"COLLABORATION"`

	// Router responder 路由配置
	Router RouterConfig `yaml:"router" env:"ROUTER"`

	// Responders 各 responder 的连接配置
	Responders RespondersConfig `yaml:"responders" env:"RESPONDERS"`

	// Credentials OAuth 凭据存储与刷新配置
	Credentials CredentialsConfig `yaml:"credentials" env:"CREDENTIALS"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时，需大于一次完整协作的耗时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 允许的跨域来源，为空时拒绝跨域
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// 每个 IP 的限流速率
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// API Key 列表，为空时不启用 API Key 认证
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// 是否允许通过 query 参数传递 API Key（WebSocket 客户端需要）
	AllowQueryAPIKey bool `yaml:"allow_query_api_key" env:"ALLOW_QUERY_API_KEY"`
	// JWT 认证
	JWT JWTConfig `yaml:"jwt" env:"JWT"`
}

// JWTConfig JWT 认证配置，Secret 与 PublicKey 都为空时不启用
type JWTConfig struct {
	Secret    string `yaml:"secret" env:"SECRET"`
	PublicKey string `yaml:"public_key" env:"PUBLIC_KEY"`
	Issuer    string `yaml:"issuer" env:"ISSUER"`
	Audience  string `yaml:"audience" env:"AUDIENCE"`
}

// Enabled 返回是否配置了 JWT 校验密钥
func (j JWTConfig) Enabled() bool {
	return j.Secret != "" || j.PublicKey != ""
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// 不使用 TLS 连接 collector
	Insecure bool `yaml:"insecure" env:"INSECURE"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名，sqlite 时为文件路径
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 启动时自动执行迁移
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 使用 TLS 连接
	TLS bool `yaml:"tls" env:"TLS"`
	// 健康检查间隔，0 表示不检查
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
}

// StoreConfig 讨论存储配置
type StoreConfig struct {
	// 类型: memory, file, redis, sql
	Type string `yaml:"type" env:"TYPE"`
	// file 存储的根目录
	BaseDir string `yaml:"base_dir" env:"BASE_DIR"`
	// redis 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 讨论记录保留时长，0 表示永久
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// CollaborationConfig 协作引擎配置
type CollaborationConfig struct {
	// 讨论最大轮数
	MaxRounds int `yaml:"max_rounds" env:"MAX_ROUNDS"`
	// 等待同房间前一个协作结束的最长时间
	RoomLockTimeout time.Duration `yaml:"room_lock_timeout" env:"ROOM_LOCK_TIMEOUT"`
	// 单次协作的总超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// RouterConfig responder 路由配置
type RouterConfig struct {
	// 单次 responder 调用超时
	CallTimeout time.Duration `yaml:"call_timeout" env:"CALL_TIMEOUT"`
	// 熔断配置
	Breaker BreakerConfig `yaml:"breaker" env:"BREAKER"`
}

// BreakerConfig 熔断配置
type BreakerConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	Threshold    int           `yaml:"threshold" env:"THRESHOLD"`
	ResetTimeout time.Duration `yaml:"reset_timeout" env:"RESET_TIMEOUT"`
}

// RespondersConfig 各 responder 的连接配置
type RespondersConfig struct {
	Ollama ResponderConfig `yaml:"ollama" env:"OLLAMA"`
	Claude ResponderConfig `yaml:"claude" env:"CLAUDE"`
	GPT    ResponderConfig `yaml:"gpt" env:"GPT"`
	Gemini ResponderConfig `yaml:"gemini" env:"GEMINI"`
	Grok   ResponderConfig `yaml:"grok" env:"GROK"`
}

// ByName 以 responder 名称为键返回全部配置
func (r RespondersConfig) ByName() map[string]ResponderConfig {
	return map[string]ResponderConfig{
		"ollama": r.Ollama,
		"claude": r.Claude,
		"gpt":    r.GPT,
		"gemini": r.Gemini,
		"grok":   r.Grok,
	}
}

// ResponderConfig 单个 responder 的连接配置。空字段使用该 responder 的内置默认值。
type ResponderConfig struct {
	// 是否允许使用该 responder
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 静态 API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 覆盖默认端点
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 覆盖默认模型
	Model string `yaml:"model" env:"MODEL"`
	// 覆盖默认优先级，0 表示使用默认
	Priority int `yaml:"priority" env:"PRIORITY"`
	// 使用 OAuth 凭据（由 credentials 存储提供并自动刷新）
	OAuth bool `yaml:"oauth" env:"OAUTH"`
}

// CredentialsConfig OAuth 凭据配置
type CredentialsConfig struct {
	// 存储类型: memory, file, redis
	Store string `yaml:"store" env:"STORE"`
	// file 存储路径
	FilePath string `yaml:"file_path" env:"FILE_PATH"`
	// redis 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 刷新请求超时
	RefreshTimeout time.Duration `yaml:"refresh_timeout" env:"REFRESH_TIMEOUT"`
	// 提前刷新的时间窗口
	RefreshSkew time.Duration `yaml:"refresh_skew" env:"REFRESH_SKEW"`
	// 各 OAuth 提供方的 client id
	AnthropicClientID string `yaml:"anthropic_client_id" env:"ANTHROPIC_CLIENT_ID"`
	OpenAIClientID    string `yaml:"openai_client_id" env:"OPENAI_CLIENT_ID"`
	GoogleClientID    string `yaml:"google_client_id" env:"GOOGLE_CLIENT_ID"`
	GoogleSecret      string `yaml:"google_client_secret" env:"GOOGLE_CLIENT_SECRET"`
}
