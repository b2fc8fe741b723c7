// Package config loads service settings from a .env file and the
// environment through viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	JWT            JWTConfig
	Voice          VoiceConfig
	PaymentRequest PaymentRequestConfig
	Log            LogConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds /api/v1 handlers; the websocket is exempt.
	RequestTimeout time.Duration
	StaticDir      string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration. Driver selects postgres or
// sqlite; Path is only used by sqlite.
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	EventsKey string
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// KafkaConfig is optional; event streaming is disabled without brokers.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type JWTConfig struct {
	SecretKey   string
	ExpiryHours int
}

func (c JWTConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

type VoiceConfig struct {
	GeminiAPIKey        string
	GeminiModel         string
	ConfidenceThreshold float64
	LanguageCode        string
}

type PaymentRequestConfig struct {
	TTL time.Duration
}

type LogConfig struct {
	Level       string
	Development bool
}

type binding struct {
	key      string
	env      string
	fallback any
}

var bindings = []binding{
	{"server.port", "PORT", "8080"},
	{"server.read_timeout", "SERVER_READ_TIMEOUT", 15 * time.Second},
	{"server.write_timeout", "SERVER_WRITE_TIMEOUT", 15 * time.Second},
	{"server.idle_timeout", "SERVER_IDLE_TIMEOUT", 60 * time.Second},
	{"server.request_timeout", "SERVER_REQUEST_TIMEOUT", 60 * time.Second},
	{"server.static_dir", "STATIC_DIR", "./static/game"},
	{"server.allowed_origins", "CORS_ALLOWED_ORIGINS", "*"},

	{"database.driver", "DATABASE_DRIVER", "postgres"},
	{"database.host", "DATABASE_HOST", "localhost"},
	{"database.port", "DATABASE_PORT", "5432"},
	{"database.user", "DATABASE_USER", "postgres"},
	{"database.password", "DATABASE_PASSWORD", "password"},
	{"database.name", "DATABASE_NAME", "treasure_hunt"},
	{"database.ssl_mode", "DATABASE_SSL_MODE", "disable"},
	{"database.path", "DATABASE_PATH", "treasure_hunt.db"},
	{"database.max_open_conns", "DATABASE_MAX_OPEN_CONNS", 25},
	{"database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS", 5},
	{"database.conn_max_lifetime", "DATABASE_CONN_MAX_LIFETIME", 5 * time.Minute},

	{"redis.host", "REDIS_HOST", "localhost"},
	{"redis.port", "REDIS_PORT", "6379"},
	{"redis.password", "REDIS_PASSWORD", ""},
	{"redis.db", "REDIS_DB", 0},
	{"redis.events_key", "REDIS_EVENTS_KEY", "ledger_events"},

	{"kafka.brokers", "KAFKA_BROKERS", ""},
	{"kafka.topic", "KAFKA_TOPIC", "ledger.transactions"},

	{"jwt.secret_key", "JWT_SECRET_KEY", ""},
	{"jwt.expiry_hours", "JWT_EXPIRY_HOURS", 24},

	{"voice.gemini_api_key", "GEMINI_API_KEY", ""},
	{"voice.gemini_model", "GEMINI_MODEL", "gemini-2.0-flash"},
	{"voice.confidence_threshold", "VOICE_CONFIDENCE_THRESHOLD", 0.5},
	{"voice.language_code", "VOICE_LANGUAGE_CODE", "en-US"},

	{"payment_request.ttl", "PAYMENT_REQUEST_TTL", 5 * time.Minute},

	{"log.level", "LOG_LEVEL", "info"},
	{"log.development", "LOG_DEVELOPMENT", false},
}

// Load reads configFile (usually ".env") when it exists, then lets
// environment variables override it. A missing file is not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.fallback)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", b.env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", configFile, err)
			}
		}
		// dotenv keys arrive flat (database_host); lift them under the
		// dotted keys so the environment still wins.
		for _, b := range bindings {
			flat := strings.ToLower(b.env)
			if v.InConfig(flat) {
				v.SetDefault(b.key, v.Get(flat))
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			ReadTimeout:    v.GetDuration("server.read_timeout"),
			WriteTimeout:   v.GetDuration("server.write_timeout"),
			IdleTimeout:    v.GetDuration("server.idle_timeout"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			StaticDir:      v.GetString("server.static_dir"),
			AllowedOrigins: splitList(v.GetString("server.allowed_origins")),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Host:      v.GetString("redis.host"),
			Port:      v.GetString("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			EventsKey: v.GetString("redis.events_key"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		JWT: JWTConfig{
			SecretKey:   v.GetString("jwt.secret_key"),
			ExpiryHours: v.GetInt("jwt.expiry_hours"),
		},
		Voice: VoiceConfig{
			GeminiAPIKey:        v.GetString("voice.gemini_api_key"),
			GeminiModel:         v.GetString("voice.gemini_model"),
			ConfidenceThreshold: v.GetFloat64("voice.confidence_threshold"),
			LanguageCode:        v.GetString("voice.language_code"),
		},
		PaymentRequest: PaymentRequestConfig{
			TTL: v.GetDuration("payment_request.ttl"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Voice.ConfidenceThreshold < 0 || c.Voice.ConfidenceThreshold > 1 {
		return fmt.Errorf("voice confidence threshold must be within [0, 1], got %v", c.Voice.ConfidenceThreshold)
	}
	if c.PaymentRequest.TTL <= 0 {
		return fmt.Errorf("payment request ttl must be positive")
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
