// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Auth       AuthConfig       `mapstructure:"auth"`
	AI         AIConfig         `mapstructure:"ai"`
	Realtime   RealtimeConfig   `mapstructure:"realtime"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      int           `mapstructure:"rate_limit"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int32         `mapstructure:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	Migrate        bool          `mapstructure:"migrate"`
}

type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

type RepositoryConfig struct {
	Type string `mapstructure:"type"` // "postgres" или "inmemory"
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type AIConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RealtimeConfig struct {
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	SendBuffer   int           `mapstructure:"send_buffer"`
}

type WorkerConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type TelemetryConfig struct {
	StdoutMetrics bool          `mapstructure:"stdout_metrics"`
	Interval      time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", 100)

	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.idle_timeout", 5*time.Minute)
	v.SetDefault("database.migrate", true)

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)

	v.SetDefault("repository.type", "inmemory")

	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-3.5-turbo")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.timeout", 10*time.Second)

	v.SetDefault("realtime.write_timeout", 10*time.Second)
	v.SetDefault("realtime.ping_interval", 30*time.Second)
	v.SetDefault("realtime.send_buffer", 16)

	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.interval", 5*time.Minute)
	v.SetDefault("worker.batch_size", 100)

	v.SetDefault("telemetry.stdout_metrics", false)
	v.SetDefault("telemetry.interval", time.Minute)
}

// Load читает .env, затем config.yml (если есть) и переменные окружения TASKS_*
func Load(path string) (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TASKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка чтения конфига: %w", err)
		}
	}

	// AutomaticEnv не видит ключи без значения по умолчанию при Unmarshal
	for _, key := range []string{"database.url", "auth.jwt_secret", "ai.api_key", "logging.file"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфига: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret не задан")
	}
	switch c.Repository.Type {
	case "inmemory":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("database.url обязателен для repository.type=postgres")
		}
	default:
		return fmt.Errorf("неизвестный тип репозитория %q", c.Repository.Type)
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
