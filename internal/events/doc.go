// Package events carries in-process notifications of committed
// progress changes from the progress service to registered observers.
// The durable event log lives in the database; these notifications are
// a best-effort in-memory mirror for logging and fan-out.
package events
