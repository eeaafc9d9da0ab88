package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL,required"`
	AuthJWTSecret         string `env:"AUTH_JWT_SECRET,required"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
	AnswerRateLimitPerMin int    `env:"ANSWER_RATE_LIMIT_PER_MIN" envDefault:"120"`
	SweepIntervalSeconds  int    `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60"`
	WaitingTTLMinutes     int    `env:"WAITING_TTL_MINUTES" envDefault:"30"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) WaitingTTL() time.Duration {
	return time.Duration(c.WaitingTTLMinutes) * time.Minute
}

func (c *Config) Validate() error {
	if len(c.AuthJWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters (generate with: openssl rand -base64 32)")
	}
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
