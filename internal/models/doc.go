// Package models defines the domain types of the user import pipeline.
//
// Input side:
//   - [RawRow] : one CSV data row as a field name to value mapping
//   - [UserRecord] : a validated row, built by [ParseUserRecord]
//   - [ValidationError] : the missing or blank fields of a rejected row
//
// Outcome side:
//   - [FailureKind] : classification of a failed API attempt (transient or permanent)
//   - [Outcome] : terminal state of one record (Success, PermanentFailure, Exhausted, Rejected)
//   - [RecordResult] : what happened to one row
//   - [Run] : summary of one import over a file, persisted by the repositories package
package models
