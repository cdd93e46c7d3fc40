package agent

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil, func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "localhost:8420" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
}

func TestParseConfigEnvFallback(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "DAYBREAK_AGENT_ADDR" {
			return "localhost:9999", true
		}
		return "", false
	}

	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil, lookup)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "localhost:9999" {
		t.Fatalf("expected env addr, got %q", cfg.Addr)
	}
}

func TestParseConfigFlagOverridesEnv(t *testing.T) {
	lookup := func(string) (string, bool) { return "localhost:9999", true }

	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", "localhost:7000"}, lookup)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "localhost:7000" {
		t.Fatalf("expected flag addr, got %q", cfg.Addr)
	}
}
