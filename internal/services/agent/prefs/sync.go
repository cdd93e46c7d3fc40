package prefs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/time/rate"

	"github.com/daybreak-app/daybreak/internal/platform/timeouts"
)

// SyncConfig controls the best-effort preference mirror.
type SyncConfig struct {
	BaseURL       string  `env:"DAYBREAK_SYNC_URL"`
	ServiceKey    string  `env:"DAYBREAK_SYNC_SERVICE_KEY"`
	Table         string  `env:"DAYBREAK_SYNC_TABLE"           envDefault:"preferences"`
	RatePerMinute float64 `env:"DAYBREAK_SYNC_RATE_PER_MINUTE" envDefault:"30"`
}

// LoadSyncConfigFromEnv loads mirror configuration. An empty BaseURL disables
// mirroring entirely.
func LoadSyncConfigFromEnv() SyncConfig {
	var cfg SyncConfig
	_ = env.Parse(&cfg)
	if cfg.Table == "" {
		cfg.Table = "preferences"
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 30
	}
	return cfg
}

// HTTPMirror replicates preference documents to the sync backend's REST table
// endpoint. Writes beyond the configured rate are skipped; the debounced local
// flush already coalesces bursts and local storage stays authoritative.
type HTTPMirror struct {
	config     SyncConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    MirrorMetrics
}

// MirrorMetrics counts mirror writes skipped by throttling.
type MirrorMetrics interface {
	RecordMirrorThrottled()
}

// NewHTTPMirror creates a mirror from config, or nil when mirroring is disabled.
func NewHTTPMirror(config SyncConfig) *HTTPMirror {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil
	}
	return &HTTPMirror{
		config:     config,
		httpClient: &http.Client{Timeout: timeouts.SyncRequest},
		limiter:    rate.NewLimiter(rate.Limit(config.RatePerMinute/60.0), 1),
	}
}

// SetMetrics attaches a throttling metrics sink. Safe on a nil mirror.
func (m *HTTPMirror) SetMetrics(metrics MirrorMetrics) {
	if m != nil {
		m.metrics = metrics
	}
}

// UpsertPreferences replicates one document row keyed by identity id.
func (m *HTTPMirror) UpsertPreferences(ctx context.Context, ownerID string, document []byte) error {
	if !m.limiter.Allow() {
		if m.metrics != nil {
			m.metrics.RecordMirrorThrottled()
		}
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"user_id":    ownerID,
		"document":   json.RawMessage(document),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode mirror payload: %w", err)
	}

	endpoint := strings.TrimSuffix(m.config.BaseURL, "/") + "/rest/v1/" + m.config.Table
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build mirror request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", m.config.ServiceKey)
	req.Header.Set("Authorization", "Bearer "+m.config.ServiceKey)
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mirror request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mirror rejected write: status %d", resp.StatusCode)
	}
	return nil
}
