// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// GRPCRequest caps the time allowed for a single call to the task service.
const GRPCRequest = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long a process waits for in-flight requests and
// extended handler work during graceful shutdown.
const Shutdown = 10 * time.Second

// UpstreamFetch caps a single network fetch made by the cache worker.
const UpstreamFetch = 10 * time.Second

// PermissionPrompt caps how long the page hub waits for a page to answer a
// notification permission request.
const PermissionPrompt = 30 * time.Second

// WebSocketWrite caps a single frame write to a connected page.
const WebSocketWrite = 5 * time.Second
