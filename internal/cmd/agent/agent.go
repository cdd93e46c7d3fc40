// Package agent parses command configuration and runs the agent server.
package agent

import (
	"context"
	"flag"
	"strings"

	server "github.com/daybreak-app/daybreak/internal/services/agent/app"
)

// Config holds agent command configuration.
type Config struct {
	Addr string
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		Addr: envOrDefault(lookup, []string{"DAYBREAK_AGENT_ADDR"}, "localhost:8420"),
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The agent HTTP listen address")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the agent server.
func Run(ctx context.Context, cfg Config) error {
	return server.Run(ctx, cfg.Addr)
}

func envOrDefault(lookup EnvLookup, keys []string, fallback string) string {
	for _, key := range keys {
		if lookup == nil {
			break
		}
		value, ok := lookup(key)
		if ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed
			}
		}
	}
	return fallback
}
