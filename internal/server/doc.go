// Package server exposes health, metrics and status endpoints over HTTP.
//
// Routes:
//   - GET /health         pipeline health, 503 when a pipeline has stopped
//   - GET /metrics        Prometheus exposition
//   - GET /api/v1/status  stream, dispatcher and poller statistics
package server
