// Package memory provides the per-session memory store: an append-only
// collection of facts, preferences, and context notes with relevance-ranked
// retrieval.
//
// Ranking is deliberately simple lexical scoring (substring and token
// overlap with type, recency, and usage adjustments), not embeddings. The
// weighting constants are fixed; changing them changes observable retrieval
// order.
//
// Retrieval is a mutating operation: every returned item has its usage
// count incremented, which both boosts future ranking (capped) and extends
// the item's lifetime against the retention sweep. Callers must not
// retrieve speculatively.
package memory
