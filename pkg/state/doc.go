// Package state persists group id lists and feeds them to a reconciler.
//
// A Store loads and saves the id list of one group under the group's config
// key ("{namespace}.groupedOverlay.{field}.ids"). Implementations:
//   - MemoryStore for tests and examples.
//   - SQLiteStore backed by modernc.org/sqlite.
//   - FileStore keeping all groups in one JSON, YAML or TOML document.
//
// Every store assigns a revision-based ETag on save and rejects saves whose
// non-empty ETag no longer matches (ErrETagMismatch).
//
// Resolver ties a Store to a groups.Reconciler:
//
//	Store.Load -> Reconciler.Reconcile -> slot
//	slot -> IDsOf(Elements) -> Store.Save
//
// A key that was never saved resolves to the descriptor's default ids, so a
// freshly registered group starts with DefaultCount elements.
package state
