package backend

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls how the agent reaches the identity backend.
//
// These values are read at startup so deployments can point the agent at a
// staging backend without changing runtime code paths.
type Config struct {
	BaseURL string        `env:"DAYBREAK_BACKEND_URL"     envDefault:"https://identity.daybreak.app"`
	APIKey  string        `env:"DAYBREAK_BACKEND_API_KEY"`
	Timeout time.Duration `env:"DAYBREAK_BACKEND_TIMEOUT" envDefault:"10s"`
}

// LoadConfigFromEnv loads backend configuration and applies defensive defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://identity.daybreak.app"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return cfg
}
