// Package work is the aggregation engine behind a changelog run. It turns
// the flat, partially linked work items returned by a platform into a
// forest grouped by type.
//
// # Pipeline
//
// For platforms returning flat items (platform.NeedsResolution):
//
//	query ─► detail fetch ─► Store ─► Resolver ─► orphan bucket ─► BuildHierarchy
//
// For platforms returning trees (platform.PreNested) the returned roots are
// grouped directly. Both paths may then summarize items and, in
// GenerateOrderedGroups, append a "Commit" group built from repository
// history.
//
// # Concurrency
//
// The Store is the only shared mutable structure. Detail fetches and item
// summaries fan out fully; parent fetches run in batches of at most
// resolver.batch_size. Fetched items are stored in request order once their
// batch settles, so store order is reproducible. Any failure inside a concurrent group cancels the
// group and fails the run. Orphan reparenting and hierarchy building happen
// after all concurrent work of the previous phase has settled.
//
// # Lifecycle
//
// Initialize and Close bracket the platform connection and are each
// effective once. Run wraps a function with both and always closes.
package work
