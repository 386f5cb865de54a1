// Package server runs the flowkit HTTP API: a Gin engine behind an
// http-level middleware chain, served with h2c.
//
// Built-in endpoints (server/endpoint): /health, /livez, /readyz, /info,
// /version and /metrics.
package server
