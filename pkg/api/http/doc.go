// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Assistant registration and lookup
//   - Run submission, status queries and cancellation
//   - The worker protocol (register, heartbeat, result reporting)
//   - Health checks
//   - Prometheus metrics
package http
