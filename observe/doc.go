// Package observe provides observability primitives for the query pipeline.
//
// It is a pure instrumentation library: spans for each pipeline stage and
// tool execution, OpenTelemetry counters and histograms for queries and
// tool calls, and a JSON structured logger that redacts sensitive fields.
// Exporters are selected by name through the exporters subpackage.
//
// Consumers build a Middleware (usually via MiddlewareFromObserver) and use
// StartQuery, Stage and Wrap around their work.
package observe
