// Package config содержит логику чтения конфигурации сервисов бронирования.
package config

import (
	"flag"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress        = "localhost:8080"
	defaultStoreAddress      = "http://localhost:3000/api/v1"
	defaultStoreTimeout      = 5 * time.Second
	defaultReconcileInterval = 30 * time.Second
)

// Config содержит параметры конфигурации API бронирования и хранилища ресурсов.
type Config struct {
	RunAddress        string        `env:"RUN_ADDRESS"`
	StoreAddress      string        `env:"STORE_ADDRESS"`
	DatabaseURI       string        `env:"DATABASE_URI"`
	RedisAddress      string        `env:"REDIS_ADDRESS"`
	RabbitMQURL       string        `env:"RABBITMQ_URL"`
	JWTSecret         string        `env:"JWT_SECRET"`
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.StoreAddress, "s", defaultStoreAddress, "resource store base URL")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddress, "redis", "", "redis address for distributed locks")
	flag.StringVar(&cfg.RabbitMQURL, "amqp", "", "rabbitmq URL for booking events")
	flag.StringVar(&cfg.JWTSecret, "jwt-secret", "", "secret for signing auth tokens")
	flag.DurationVar(&cfg.StoreTimeout, "store-timeout", defaultStoreTimeout, "timeout of a single resource store request")
	flag.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", defaultReconcileInterval, "interval of the payment reconciliation worker")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.StoreAddress != "" {
		cfg.StoreAddress = fromEnv.StoreAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.RedisAddress != "" {
		cfg.RedisAddress = fromEnv.RedisAddress
	}
	if fromEnv.RabbitMQURL != "" {
		cfg.RabbitMQURL = fromEnv.RabbitMQURL
	}
	if fromEnv.JWTSecret != "" {
		cfg.JWTSecret = fromEnv.JWTSecret
	}
	if fromEnv.StoreTimeout != 0 {
		cfg.StoreTimeout = fromEnv.StoreTimeout
	}
	if fromEnv.ReconcileInterval != 0 {
		cfg.ReconcileInterval = fromEnv.ReconcileInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.StoreAddress == "" {
		cfg.StoreAddress = defaultStoreAddress
	}

	return cfg, nil
}

// StoreListenAddress возвращает адрес host:port, который слушает хранилище ресурсов, из STORE_ADDRESS.
func (c *Config) StoreListenAddress() (string, error) {
	base := c.StoreAddress
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse store address: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("store address %q has no host", c.StoreAddress)
	}
	return u.Host, nil
}
