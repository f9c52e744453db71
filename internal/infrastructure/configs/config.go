package configs

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/hilthontt/ticketchat/internal/infrastructure/env"
	"github.com/hilthontt/ticketchat/internal/infrastructure/logging"
	"github.com/hilthontt/ticketchat/internal/infrastructure/tracing"
)

type Config struct {
	HTTP        HTTPConfig           `koanf:"http"`
	RateLimiter RateLimiterConfig    `koanf:"rateLimiter"`
	Websocket   WebsocketConfig      `koanf:"websocket"`
	Chat        ChatConfig           `koanf:"chat"`
	Auth        AuthConfig           `koanf:"auth"`
	Mongo       MongoConfig          `koanf:"mongo"`
	Memory      MemoryConfig         `koanf:"memory"`
	Redis       RedisConfig          `koanf:"redis"`
	RabbitMQ    RabbitMQConfig       `koanf:"rabbitmq"`
	Logger      logging.LoggerConfig `koanf:"logger"`
	Tracing     tracing.Config       `koanf:"tracing"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	AllowedHeaders []string      `koanf:"allowed_headers"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

// RateLimiterConfig guards the upgrade endpoint per source address.
type RateLimiterConfig struct {
	MaxRatePerSecond int           `koanf:"maxRatePerSecond"`
	MaxBurst         int           `koanf:"maxBurst"`
	CacheTTL         time.Duration `koanf:"cacheTTL"`
	SourceHeaderKey  string        `koanf:"sourceHeaderKey"`
}

type WebsocketConfig struct {
	SendBuffer     int           `koanf:"send_buffer"`
	PingPeriod     time.Duration `koanf:"ping_period"`
	PongWait       time.Duration `koanf:"pong_wait"`
	WriteWait      time.Duration `koanf:"write_wait"`
	MaxMessageSize int64         `koanf:"max_message_size"`
}

type ChatConfig struct {
	DedupRetention     time.Duration `koanf:"dedup_retention"`
	DedupSweepInterval time.Duration `koanf:"dedup_sweep_interval"`
	SendLimit          int           `koanf:"send_limit"`
	SendWindow         time.Duration `koanf:"send_window"`
	TypingTimeout      time.Duration `koanf:"typing_timeout"`
	PersistTimeout     time.Duration `koanf:"persist_timeout"`
	MaxBodyLength      int           `koanf:"max_body_length"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

// MongoConfig with an empty URI selects the in-memory stores.
type MongoConfig struct {
	URI               string        `koanf:"uri"`
	Database          string        `koanf:"database"`
	ConnectionTimeout time.Duration `koanf:"connection_timeout"`
}

// MemoryConfig seeds the in-memory stores used without MongoDB.
type MemoryConfig struct {
	Users   []SeedUser   `koanf:"users"`
	Tickets []SeedTicket `koanf:"tickets"`
}

type SeedUser struct {
	ID        string `koanf:"id"`
	Fullname  string `koanf:"fullname"`
	AvatarURL string `koanf:"avatar_url"`
	Email     string `koanf:"email"`
}

type SeedTicket struct {
	ID         string `koanf:"id"`
	Creator    string `koanf:"creator"`
	AssignedTo string `koanf:"assigned_to"`
}

// RedisConfig with an empty address disables the profile cache.
type RedisConfig struct {
	Addr       string        `koanf:"addr"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	ProfileTTL time.Duration `koanf:"profile_ttl"`
}

// RabbitMQConfig with an empty URI disables event publishing.
type RabbitMQConfig struct {
	URI      string `koanf:"uri"`
	Exchange string `koanf:"exchange"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	// HTTP defaults
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8080)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})
	setDefault(k, "http.allowed_headers", []string{"Content-Type", "Authorization"})

	// Rate limiter defaults
	setDefault(k, "rateLimiter.maxRatePerSecond", 5)
	setDefault(k, "rateLimiter.maxBurst", 10)
	setDefault(k, "rateLimiter.cacheTTL", 10*time.Minute)
	setDefault(k, "rateLimiter.sourceHeaderKey", "X-Forwarded-For")

	setDefault(k, "websocket.send_buffer", 64)
	setDefault(k, "websocket.ping_period", 30*time.Second)
	setDefault(k, "websocket.pong_wait", 60*time.Second)
	setDefault(k, "websocket.write_wait", 10*time.Second)
	setDefault(k, "websocket.max_message_size", 32*1024)

	setDefault(k, "chat.dedup_retention", 5*time.Minute)
	setDefault(k, "chat.dedup_sweep_interval", time.Minute)
	setDefault(k, "chat.send_limit", 10)
	setDefault(k, "chat.send_window", time.Minute)
	setDefault(k, "chat.typing_timeout", 5*time.Second)
	setDefault(k, "chat.persist_timeout", 5*time.Second)
	setDefault(k, "chat.max_body_length", 5000)

	setDefault(k, "mongo.database", "ticketing")
	setDefault(k, "mongo.connection_timeout", 20*time.Second)

	setDefault(k, "redis.profile_ttl", 10*time.Minute)

	setDefault(k, "rabbitmq.exchange", "ticketchat")

	setDefault(k, "logger.encoding", "json")
	setDefault(k, "logger.level", "info")
	setDefault(k, "logger.logger", "zap")

	setDefault(k, "tracing.service_name", "ticketchat")
	setDefault(k, "tracing.environment", "development")
	setDefault(k, "tracing.exporter", "none")
	setDefault(k, "tracing.sample_ratio", 1.0)
}

func applyEnvOverrides(k *koanf.Koanf) {
	// HTTP config from env
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if readTimeout := env.GetInt("HTTP_READ_TIMEOUT_SECONDS", 0); readTimeout > 0 {
		k.Set("http.read_timeout", time.Duration(readTimeout)*time.Second)
	}
	if writeTimeout := env.GetInt("HTTP_WRITE_TIMEOUT_SECONDS", 0); writeTimeout > 0 {
		k.Set("http.write_timeout", time.Duration(writeTimeout)*time.Second)
	}

	// Rate limiter config from env
	if maxRate := env.GetInt("RATE_LIMIT_MAX_RATE_PER_SECOND", 0); maxRate > 0 {
		k.Set("rateLimiter.maxRatePerSecond", maxRate)
	}
	if maxBurst := env.GetInt("RATE_LIMIT_MAX_BURST", 0); maxBurst > 0 {
		k.Set("rateLimiter.maxBurst", maxBurst)
	}
	if sourceKey := env.GetString("RATE_LIMIT_SOURCE_HEADER_KEY", ""); sourceKey != "" {
		k.Set("rateLimiter.sourceHeaderKey", sourceKey)
	}

	// Chat tuning from env
	if limit := env.GetInt("CHAT_SEND_LIMIT", 0); limit > 0 {
		k.Set("chat.send_limit", limit)
	}
	if window := env.GetDuration("CHAT_SEND_WINDOW", 0); window > 0 {
		k.Set("chat.send_window", window)
	}
	if timeout := env.GetDuration("CHAT_TYPING_TIMEOUT", 0); timeout > 0 {
		k.Set("chat.typing_timeout", timeout)
	}
	if timeout := env.GetDuration("CHAT_PERSIST_TIMEOUT", 0); timeout > 0 {
		k.Set("chat.persist_timeout", timeout)
	}

	// Secrets and endpoints from env
	if secret := env.GetString("JWT_SECRET", ""); secret != "" {
		k.Set("auth.jwt_secret", secret)
	}
	if uri := env.GetString("MONGODB_URI", ""); uri != "" {
		k.Set("mongo.uri", uri)
	}
	if database := env.GetString("MONGODB_DATABASE", ""); database != "" {
		k.Set("mongo.database", database)
	}
	if addr := env.GetString("REDIS_ADDR", ""); addr != "" {
		k.Set("redis.addr", addr)
	}
	if password := env.GetString("REDIS_PASSWORD", ""); password != "" {
		k.Set("redis.password", password)
	}
	if uri := env.GetString("RABBITMQ_URI", ""); uri != "" {
		k.Set("rabbitmq.uri", uri)
	}

	// Logger and tracing from env
	if level := env.GetString("LOGGER_LEVEL", ""); level != "" {
		k.Set("logger.level", level)
	}
	if backend := env.GetString("LOGGER_LOGGER", ""); backend != "" {
		k.Set("logger.logger", backend)
	}
	if path := env.GetString("LOGGER_FILE_PATH", ""); path != "" {
		k.Set("logger.file_path", path)
	}
	if exporter := env.GetString("TRACING_EXPORTER", ""); exporter != "" {
		k.Set("tracing.exporter", exporter)
	}
	if endpoint := env.GetString("TRACING_ENDPOINT", ""); endpoint != "" {
		k.Set("tracing.endpoint", endpoint)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
