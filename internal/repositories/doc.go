// Package repositories implements SQLite persistence for import history.
//
// Key Implementations:
//   - [RunRepository] : one row per import run with its counters, addressable by UUID or sequence number
//   - [OutcomeRepository] : one row per input record, written as soon as the record reaches a terminal state
//
// Sequence numbers provide stable, human-readable ordering (run #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
//
// Deleting a run cascades to its record outcomes through the foreign key on record_outcomes.run_id.
package repositories
