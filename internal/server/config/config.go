// Package config загружает конфигурацию сервера из YAML файла
// с переопределением через переменные окружения (префикс MONEYSYNC_).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type RateLimitConfig struct {
	AuthRate   int           `mapstructure:"auth_rate"`
	AuthWindow time.Duration `mapstructure:"auth_window"`
	Rate       int           `mapstructure:"rate"`
	Window     time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

// Load читает конфигурацию из файла (по умолчанию config.yaml в рабочей
// директории). Отсутствие файла не ошибка: действуют дефолты и env.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "moneysync.db")
	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_ttl", 720*time.Hour)
	v.SetDefault("rate_limit.auth_rate", 10)
	v.SetDefault("rate_limit.auth_window", 5*time.Minute)
	v.SetDefault("rate_limit.rate", 300)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("log.level", "info")

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	// Переопределения вида MONEYSYNC_SERVER_PORT=9000
	v.SetEnvPrefix("MONEYSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if c.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required (set MONEYSYNC_JWT_SECRET or config file)")
	}

	return &c, nil
}

// Addr возвращает адрес для http.Server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
