// Package syncer drives the periodic catalog sync cycle.
//
// One cycle runs pull → diff → match → persist as an explicit state
// machine owned by a single Orchestrator. The transition out of Idle is a
// compare-and-set, so cycles can never overlap; the Scheduler defers at
// most one trigger that arrives while a cycle is in flight.
//
// Failure discipline, in decreasing blast radius:
//
//   - a malformed upstream record is skipped by the adapter;
//   - one product's failed match is collected and retried next cycle;
//   - a failed category pull marks the cycle partial and scopes the diff
//     to the categories that did pull;
//   - a failed stage aborts the cycle without committing, leaving the
//     prior snapshot and links as the visible state, and the scheduler
//     retries earlier than the regular interval.
package syncer
