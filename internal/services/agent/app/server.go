// Package server composes and runs the agent process boundary.
//
// It wires local storage, the identity backend client, the session and
// preference stores, and the orchestrator behind one localhost HTTP listener
// so front ends talk to a single source of truth.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/daybreak-app/daybreak/internal/platform/config"
	"github.com/daybreak-app/daybreak/internal/platform/timeouts"
	"github.com/daybreak-app/daybreak/internal/services/agent/api"
	"github.com/daybreak-app/daybreak/internal/services/agent/auth"
	"github.com/daybreak-app/daybreak/internal/services/agent/backend"
	"github.com/daybreak-app/daybreak/internal/services/agent/prefs"
	"github.com/daybreak-app/daybreak/internal/services/agent/provider"
	"github.com/daybreak-app/daybreak/internal/services/agent/session"
	agentsqlite "github.com/daybreak-app/daybreak/internal/services/agent/storage/sqlite"
	"github.com/daybreak-app/daybreak/internal/services/agent/telemetry"
)

type serverEnv struct {
	DBPath            string `env:"DAYBREAK_AGENT_DB_PATH"`
	GoogleClientID    string `env:"DAYBREAK_GOOGLE_CLIENT_ID"`
	GoogleSecret      string `env:"DAYBREAK_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI string `env:"DAYBREAK_GOOGLE_REDIRECT_URI"`
	AppleClientID     string `env:"DAYBREAK_APPLE_CLIENT_ID"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "daybreak.db")
	}
	return cfg
}

// Server hosts the agent HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *agentsqlite.Store
	session    *session.Store
	prefs      *prefs.Store
}

// Option injects the interactive provider flows a front end supplies.
type Option func(*options)

type options struct {
	appleAuthorizer provider.AppleAuthorizer
	googleFlow      provider.CodeGrantFlow
}

// WithAppleAuthorizer enables Sign in with Apple via the given authorizer.
func WithAppleAuthorizer(authorizer provider.AppleAuthorizer) Option {
	return func(o *options) { o.appleAuthorizer = authorizer }
}

// WithGoogleFlow enables Google sign-in via the given code grant flow.
func WithGoogleFlow(flow provider.CodeGrantFlow) Option {
	return func(o *options) { o.googleFlow = flow }
}

// New creates a configured agent server listening on the provided address.
func New(addr string, opts ...Option) (*Server, error) {
	var injected options
	for _, opt := range opts {
		opt(&injected)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()
	store, err := openAgentStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	collector := telemetry.NewCollector(registry)

	client := backend.NewHTTPClient(backend.LoadConfigFromEnv())
	sessionStore := session.NewStore(client, session.WithMetrics(collector))

	mirror := prefs.NewHTTPMirror(prefs.LoadSyncConfigFromEnv())
	mirror.SetMetrics(collector)
	prefsOpts := prefs.Options{Metrics: collector}
	if mirror != nil {
		prefsOpts.Mirror = mirror
	}
	prefsStore := prefs.NewStore(store, prefsOpts)

	orchOpts := []auth.Option{auth.WithMetrics(collector)}
	if injected.googleFlow != nil {
		source := provider.NewGoogleTokenSource(provider.GoogleConfig{
			ClientID:     env.GoogleClientID,
			ClientSecret: env.GoogleSecret,
			RedirectURI:  env.GoogleRedirectURI,
		}, injected.googleFlow)
		orchOpts = append(orchOpts, auth.WithTokenSource(provider.GoogleID, source))
	}
	if injected.appleAuthorizer != nil {
		source := provider.NewAppleTokenSource(provider.AppleConfig{
			ClientID: env.AppleClientID,
		}, injected.appleAuthorizer)
		orchOpts = append(orchOpts, auth.WithTokenSource(provider.AppleID, source))
	}
	orchestrator := auth.New(client, sessionStore, prefsStore, orchOpts...)

	mux := http.NewServeMux()
	api.NewHandler(orchestrator, sessionStore, prefsStore).RegisterRoutes(mux)
	mux.Handle("/metrics", telemetry.Handler(registry))

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		store:   store,
		session: sessionStore,
		prefs:   prefsStore,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve runs the HTTP server until the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("agent server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	serveErr := make(chan error, 1)
	log.Printf("agent listening on %s", s.Addr())
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Run creates and serves an agent server until context cancellation.
func Run(ctx context.Context, addr string, opts ...Option) error {
	server, err := New(addr, opts...)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Close releases agent server resources, flushing any pending preference
// write first.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.prefs != nil {
		if err := s.prefs.Flush(context.Background()); err != nil {
			log.Printf("flush preferences on shutdown: %v", err)
		}
	}
	if s.session != nil {
		s.session.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close agent store: %v", err)
		}
	}
}

func openAgentStore(path string) (*agentsqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := agentsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open agent sqlite store: %w", err)
	}
	return store, nil
}
