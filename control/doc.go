// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer.
//
// Provides:
//   - a Prometheus collector over the server statistics
//   - named debug probes dumped as JSON
//   - an HTTP exporter serving both
package control
