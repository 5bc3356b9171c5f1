// Package parser turns free-text requests into structured queries.
//
// Parsing never fails. Input is normalized (diacritics stripped, lowercased,
// punctuation removed, known phrases collapsed), tokenized and resolved
// against a keyword Vocabulary. Tokens that miss the vocabulary are matched
// fuzzily with Similarity, so "cryptp" and "bitcon" still resolve to crypto.
//
// Category precedence: the leftmost exact match of a specific category wins,
// then the leftmost fuzzy match, then "general". A token equal to a tool
// alias is recorded as a routing hint.
//
// Numbers become the limit only in a quantity context ("top 10", "show 3",
// "5 markets"), so years and other stray numbers are ignored. "offset N" and
// "skip N" set the offset. Out-of-range values are clamped and the clamp is
// recorded in Query.Degraded.
//
// The vocabulary can be swapped at runtime with SetVocabulary, or kept in
// sync with a YAML file using Watch.
package parser
