// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Poll cycle counts, durations and per-symbol fetch failures
//   - Stream state, connects and frame rates
//   - Emitted trades by symbol and side
//   - Recoverable errors by component and kind
package metrics
