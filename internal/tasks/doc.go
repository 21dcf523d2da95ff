// Package tasks runs the user import: one record at a time, with bounded retries of transient API failures.
//
// # Record Lifecycle
//
//	Read -> Rejected                              (validation or CSV row error)
//	Read -> Validated -> Attempting(1)
//	Attempting(n) -> Success
//	Attempting(n) -> PermanentFailure             (BadRequest, Unauthorized)
//	Attempting(n) -> Retrying -> Attempting(n+1)  (Timeout, ServerError, NetworkError; n < 5)
//	Attempting(5) -> Exhausted
//
// # Retry Policy
//
// [Policy] is pure: [Policy.Decide] looks at the attempt number and the classified error and returns a [Decision].
// The delay before attempt n is BaseDelay × 2^(n−2), so with the 2s default the waits are 2s, 4s, 8s and 16s.
//
// [Retrier] applies the policy and waits through a [Sleeper], which tests replace to avoid real time passing.
// While a record waits no other record proceeds.
//
// # Event Log
//
// The [Importer] writes one [shared.EventLog] line per rejection, per retry, and per abandoned record.
// Successful records write nothing.
//
// # Progress Reporting
//
// Run accepts an optional channel of [ProgressUpdate].
// Updates use select with default so a slow consumer never blocks the import.
//
// # Persistence
//
// The optional [OutcomeRecorder] (repositories.OutcomeRepository) stores each [models.RecordResult] as soon as it is known.
// Recorder errors are logged and ignored.
package tasks
