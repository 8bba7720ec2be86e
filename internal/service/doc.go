// Package service contains the application's transactional business
// logic. ProgressService is the single writer of task snapshots and the
// append-only event log; auth subpackages handle credentials and token
// lifecycles.
package service
