// Package telemetry provides the observability stack: zerolog structured
// logging, Prometheus metrics for batch and policy activity, and
// OpenTelemetry tracing with stdout or OTLP export.
package telemetry
