// Package router maps a parsed query to one registered tool.
//
// Routing never guesses silently: every Decision carries a confidence and a
// reason, and guesses below the configured threshold are flagged in
// Decision.Degraded. The only hard failure is an empty catalog,
// reported as ErrNoToolAvailable.
package router
