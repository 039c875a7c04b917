package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	MinIO    MinIOConfig
	JWT      JWTConfig
	Limits   LimitConfig
	LogLevel string
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
	// FeedChannel is the LISTEN/NOTIFY channel row changes are relayed on.
	FeedChannel string
}

// DSN builds the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	ShareTTL time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether asset storage is configured at all.
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

type JWTConfig struct {
	Secret string
}

type LimitConfig struct {
	MutationsPerSecond float64
	Burst              int
}

// env keys that keep their historical lower-case names.
var bindings = map[string]string{
	"db.user":     "user",
	"db.password": "password",
	"db.host":     "host",
	"db.port":     "port",
	"db.name":     "dbname",
	"jwt.secret":  "SUPABASE_JWT_SECRET",
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HTTP_READ_TIMEOUT", 15)
	v.SetDefault("HTTP_WRITE_TIMEOUT", 15)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("db.port", "5432")
	v.SetDefault("DB_SSLMODE", "require")
	v.SetDefault("FEED_CHANNEL", "scoreboard_changes")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SHARE_CACHE_TTL", 300)
	v.SetDefault("MINIO_BUCKET", "scoreboard-assets")
	v.SetDefault("MINIO_USE_SSL", true)
	v.SetDefault("RATE_LIMIT_RPS", 20.0)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	str := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	cfg := &Config{
		Server: ServerConfig{
			Addr:         str("HTTP_ADDR"),
			ReadTimeout:  time.Duration(v.GetInt("HTTP_READ_TIMEOUT")) * time.Second,
			WriteTimeout: time.Duration(v.GetInt("HTTP_WRITE_TIMEOUT")) * time.Second,
		},
		DB: DBConfig{
			User:        str("db.user"),
			Password:    str("db.password"),
			Host:        str("db.host"),
			Port:        str("db.port"),
			Name:        str("db.name"),
			SSLMode:     str("DB_SSLMODE"),
			FeedChannel: str("FEED_CHANNEL"),
		},
		Redis: RedisConfig{
			Addr:     str("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			ShareTTL: time.Duration(v.GetInt("SHARE_CACHE_TTL")) * time.Second,
		},
		MinIO: MinIOConfig{
			Endpoint:  str("MINIO_ENDPOINT"),
			AccessKey: str("MINIO_ACCESS_KEY"),
			SecretKey: str("MINIO_SECRET_KEY"),
			Bucket:    str("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		JWT: JWTConfig{Secret: str("jwt.secret")},
		Limits: LimitConfig{
			MutationsPerSecond: v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:              v.GetInt("RATE_LIMIT_BURST"),
		},
		LogLevel: str("LOG_LEVEL"),
	}

	if cfg.DB.Host == "" || cfg.DB.Name == "" {
		return nil, fmt.Errorf("database host and dbname are required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	return cfg, nil
}
