// Package matcher resolves a free-text [models.Recommendation] to a concrete catalog item.
//
// # Strategies
//
//   - [Deterministic] : normalized string comparison, always answers
//   - [Semantic] : delegates the choice to a [services.SemanticRanker], falls through on any failure
//
// Strategies are composed with [Chain], an ordered fallback list: the first strategy that answers wins.
// [NewDefault] builds Semantic then Deterministic, or Deterministic alone when no ranker is configured.
//
// # Search and Resolve
//
// [Resolver] turns a recommendation into a catalog query, then tries the top few results before the
// full result set, accepting a match only at or above the configured confidence threshold.
package matcher
