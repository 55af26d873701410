package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// Auth tokens
	Auth AuthConfig `mapstructure:"auth"`

	// Geolocation enrichment
	Geo GeoConfig `mapstructure:"geo"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`

	// pgx pool tuning (parsed as Go durations, e.g. "5m")
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
	// BaseURL is the public origin encoded into QR images, e.g.
	// https://qr.example.com - the image for code "promo-2024" points at
	// BASE_URL/r/promo-2024.
	BaseURL string `mapstructure:"base_url"`
}

type AuthConfig struct {
	// TokenSecret signs session tokens. The server refuses to start
	// without it.
	TokenSecret string `mapstructure:"token_secret"`
	// TokenTTL is a Go duration string, default 24h.
	TokenTTL string `mapstructure:"token_ttl"`
}

type GeoConfig struct {
	// Endpoint of the IP geolocation service, default http://ip-api.com.
	Endpoint string `mapstructure:"endpoint"`
	// Timeout is a Go duration string for a single lookup, default 3s.
	Timeout string `mapstructure:"timeout"`
	// CacheTTL is how long per-IP results stay in Redis, default 1h.
	CacheTTL string `mapstructure:"cache_ttl"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")
	v.BindEnv("postgres.max_conns", "PG_MAX_CONNS")
	v.BindEnv("postgres.min_conns", "PG_MIN_CONNS")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")

	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.base_url", "BASE_URL")

	// Auth
	v.BindEnv("auth.token_secret", "TOKEN_SECRET")
	v.BindEnv("auth.token_ttl", "TOKEN_TTL")

	// Geolocation
	v.BindEnv("geo.endpoint", "GEO_ENDPOINT")
	v.BindEnv("geo.timeout", "GEO_TIMEOUT")
	v.BindEnv("geo.cache_ttl", "GEO_CACHE_TTL")
}
