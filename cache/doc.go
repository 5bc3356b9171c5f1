// Package cache provides the bounded in-memory TTL store used to deduplicate
// provider fetches, and the two key derivation strategies tools choose from.
//
// A Manager is created once at process start, shared by every pipeline
// invocation, and closed at shutdown. Content-hash keys change whenever the
// request parameters change; time-bucket keys change when the UTC hour does.
package cache
