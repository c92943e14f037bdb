// Package catalog defines the domain records shared by the sync engine.
//
// It holds the normalized shapes that cross package boundaries: retailer
// products, external beer records, links between them, snapshots, and the
// change events derived from snapshot comparison. Keeping these in one leaf
// package lets the matcher, differ, link store and orchestrator agree on a
// single vocabulary without importing each other.
//
// # Records
//
//   - Product: a retailer catalog entry, keyed by the retailer's stable id.
//   - ExternalBeer: a community-database record carrying rating data.
//   - Link: the confidence-scored association between the two.
//   - Snapshot: the full product set as of one committed pull cycle.
//   - ChangeEvent: a derived catalog difference between consecutive cycles.
//
// The package also defines the engine's error taxonomy (transient,
// data-shape, consistency) so that callers can classify failures without
// depending on the package that produced them.
package catalog
