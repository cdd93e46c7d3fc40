// Package timeouts defines shared timeout constants used across the agent.
// Centralizing these values prevents drift between the HTTP surface and the
// outbound backend clients.
package timeouts

import "time"

// BackendRequest caps the time allowed for a single identity backend exchange.
const BackendRequest = 10 * time.Second

// SyncRequest caps the time allowed for a best-effort preference mirror write.
const SyncRequest = 5 * time.Second

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
