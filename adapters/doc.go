// Package adapters holds what the built-in tool adapters share: an HTTP
// client that turns upstream failures into classified tool errors, and
// lenient JSON types for provider payloads that mix strings and numbers.
//
// Each provider lives in its own subpackage and implements tool.Adapter:
//
//   - polymarket serves prediction market events as get_events
//   - lunarcrush serves crypto sentiment as get_crypto_sentiment
package adapters
