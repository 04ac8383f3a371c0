package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"tg_auth_back/pkg/apperror"
	"tg_auth_back/pkg/repository"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET is not configured")

type Server struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type JWT struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Telegram struct {
	BotToken string
}

type Revocation struct {
	Backend       string
	PurgeInterval time.Duration
}

type Config struct {
	Server       Server
	AllowOrigins []string
	LogLevel     string
	DB           repository.Config
	DBTimeout    time.Duration
	Redis        repository.RedisConfig
	JWT          JWT
	Telegram     Telegram
	Revocation   Revocation
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timeout", 5*time.Second)
	v.SetDefault("jwt.issuer", "tg-auth")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("revocation.backend", BackendPostgres)
	v.SetDefault("revocation.purge_interval", time.Hour)
	v.SetDefault("redis.addr", "localhost:6379")
}

// Load reads <dir>/config.yml. Environment variables override any key
// (db.host -> DB_HOST); secrets come from the environment only.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	cfg := &Config{
		Server: Server{
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		AllowOrigins: v.GetStringSlice("cors.allow_origins"),
		LogLevel:     v.GetString("log.level"),
		DB: repository.Config{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			Username: v.GetString("db.username"),
			Password: v.GetString("db_password"),
			DBName:   v.GetString("db.dbname"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		DBTimeout: v.GetDuration("db.timeout"),
		Redis: repository.RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWT{
			Secret:     v.GetString("jwt_secret"),
			Issuer:     v.GetString("jwt.issuer"),
			AccessTTL:  v.GetDuration("jwt.access_ttl"),
			RefreshTTL: v.GetDuration("jwt.refresh_ttl"),
		},
		Telegram: Telegram{
			BotToken: v.GetString("bot_token"),
		},
		Revocation: Revocation{
			Backend:       strings.ToLower(v.GetString("revocation.backend")),
			PurgeInterval: v.GetDuration("revocation.purge_interval"),
		},
	}

	// PORT как у хостингов (Render, Heroku)
	if port := v.GetString("port"); port != "" {
		cfg.Server.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return apperror.ErrMissingBotToken
	}
	if c.JWT.Secret == "" {
		return ErrMissingJWTSecret
	}
	switch c.Revocation.Backend {
	case BackendPostgres, BackendRedis, BackendMemory:
	default:
		return errors.Errorf("unknown revocation backend %q", c.Revocation.Backend)
	}
	return nil
}
