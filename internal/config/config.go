// Package config loads client settings from .env, an optional YAML file and
// UMZUG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/sync"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/transport"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "UMZUG"

const (
	QueueBackendBolt   = "bolt"
	QueueBackendSQLite = "sqlite"

	DispatchWS   = "ws"
	DispatchREST = "rest"
)

// Config настройки клиента синхронизации
type Config struct {
	APIURL       string          `mapstructure:"api_url" validate:"required,url"`
	WSURL        string          `mapstructure:"ws_url" validate:"required,url"`
	DBPath       string          `mapstructure:"db_path" validate:"required"`
	QueueBackend string          `mapstructure:"queue_backend" validate:"oneof=bolt sqlite"`
	SQLitePath   string          `mapstructure:"sqlite_path" validate:"required_if=QueueBackend sqlite"`
	Dispatch     string          `mapstructure:"dispatch" validate:"oneof=ws rest"`
	LogLevel     string          `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Collections  []string        `mapstructure:"collections" validate:"dive,required"`
	Reconnect    ReconnectConfig `mapstructure:"reconnect"`
	WS           WSConfig        `mapstructure:"ws"`
	Queue        QueueConfig     `mapstructure:"queue"`
	AckTimeout   time.Duration   `mapstructure:"ack_timeout" validate:"gte=0"`
}

// ReconnectConfig параметры экспоненциального backoff
type ReconnectConfig struct {
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=0"`
}

// WSConfig таймауты WebSocket
type WSConfig struct {
	WriteWait  time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	PongWait   time.Duration `mapstructure:"pong_wait" validate:"gt=0"`
	PingPeriod time.Duration `mapstructure:"ping_period" validate:"gt=0,ltfield=PongWait"`
}

// QueueConfig параметры очереди
type QueueConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:5000/api")
	v.SetDefault("ws_url", "ws://localhost:5000/ws")
	v.SetDefault("db_path", "umzugsync.db")
	v.SetDefault("queue_backend", QueueBackendBolt)
	v.SetDefault("sqlite_path", "umzugsync-queue.sqlite")
	v.SetDefault("dispatch", DispatchWS)
	v.SetDefault("log_level", "info")
	v.SetDefault("collections", []string{"umzuege", "mitarbeiter", "tasks"})
	v.SetDefault("ack_timeout", 30*time.Second)
	v.SetDefault("reconnect.base_delay", time.Second)
	v.SetDefault("reconnect.max_delay", 30*time.Second)
	v.SetDefault("reconnect.max_attempts", 5)
	v.SetDefault("queue.max_attempts", 10)
	v.SetDefault("ws.write_wait", 10*time.Second)
	v.SetDefault("ws.pong_wait", 60*time.Second)
	v.SetDefault("ws.ping_period", 54*time.Second)
}

// Load читает конфигурацию. Порядок приоритета: переменные окружения
// (в том числе из .env), затем файл configFile (если указан), затем значения по умолчанию.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения по тегам validate
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Transport параметры ConnectionManager
func (c *Config) Transport() transport.Config {
	cfg := transport.DefaultConfig(c.WSURL)
	cfg.BaseDelay = c.Reconnect.BaseDelay
	cfg.MaxDelay = c.Reconnect.MaxDelay
	cfg.MaxReconnectAttempts = c.Reconnect.MaxAttempts
	cfg.WriteWait = c.WS.WriteWait
	cfg.PongWait = c.WS.PongWait
	cfg.PingPeriod = c.WS.PingPeriod
	return cfg
}

// Sync параметры оркестратора
func (c *Config) Sync() sync.Config {
	cfg := sync.DefaultConfig()
	cfg.AckTimeout = c.AckTimeout
	cfg.DrainRetryBase = c.Reconnect.BaseDelay
	cfg.DrainRetryMax = c.Reconnect.MaxDelay
	return cfg
}

// SlogLevel уровень логирования для slog
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
