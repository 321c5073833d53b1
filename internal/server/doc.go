// Package server provides the monitoring HTTP endpoints: health, runtime
// statistics, and Prometheus metrics.
package server
