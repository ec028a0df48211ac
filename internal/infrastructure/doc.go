// Package infrastructure provides the shared logging foundation: a
// global JSON slog logger with trace_id propagation through context.
//
// InitializeLogger is called once at startup; every subsequent log
// record written with a request context carries the trace_id injected
// by the HTTP middleware, so one request can be followed across
// packages.
package infrastructure
