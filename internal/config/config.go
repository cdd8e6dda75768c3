// Package config содержит логику чтения конфигурации сервиса обедов.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса обедов.
type Config struct {
	RunAddress        string `env:"RUN_ADDRESS"`
	DatabaseURI       string `env:"DATABASE_URI"`
	RedisAddress      string `env:"REDIS_ADDRESS"`
	FreezeWeeklyLimit int    `env:"FREEZE_WEEKLY_LIMIT"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRedisAddress := cfg.RedisAddress
	envFreezeLimit := cfg.FreezeWeeklyLimit

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for idempotency store (optional)")
	flag.IntVar(&cfg.FreezeWeeklyLimit, "f", 2, "weekly freeze limit per employee")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}
	if envFreezeLimit != 0 {
		cfg.FreezeWeeklyLimit = envFreezeLimit
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.FreezeWeeklyLimit <= 0 {
		cfg.FreezeWeeklyLimit = 2
	}

	return cfg, nil
}
