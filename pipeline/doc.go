// Package pipeline wires the parser, router, executor and postprocessor
// into the single entry point the HTTP, MCP and CLI surfaces call.
//
// A Run interprets the free text, routes it to a tool, serves the tool's
// payload from the cache or fetches it, and shapes the result into a
// postprocess.Response. Run never returns an error: unknown input degrades
// to the fallback tool, upstream failures become stable envelope codes,
// and panics become INTERNAL.
//
// When the selected tool fails, the router's fallbacks are tried in order
// and each attempt is recorded in queryInfo.degraded as
// "fallback_tool:<name>".
package pipeline
