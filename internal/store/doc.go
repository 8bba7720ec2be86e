// Package store defines the persistence interfaces for the
// progress-telemetry engine and the transaction helper shared by all
// implementations. Concrete stores live in internal/platform/postgres.
//
// The transaction mechanism of the relational store is the only
// mutual-exclusion primitive the engine relies on: a task snapshot
// update and its corresponding event insert always commit or roll back
// as a pair.
package store
