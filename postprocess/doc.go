// Package postprocess normalizes raw adapter payloads into the response
// envelope.
//
// Processing runs in a fixed order: validate each item (drop untitled
// entries, normalize dates to UTC RFC 3339, coerce numbers), filter by
// category and time window, enrich with tags, source and a quality score,
// sort by volume then end date, and finally apply offset and limit.
// Paging happens here rather than in adapters so cache entries can be
// shared across pages of the same query.
package postprocess
