// Package service contains the task lifecycle use cases. It orchestrates the
// domain rules in internal/domain and the repositories defined in
// internal/store.
//
// Every mutation runs as one atomic store operation. Lifecycle events are
// emitted only after the mutation has committed, and a failing emitter or
// notifier never changes the outcome the caller sees. Per-user statistics are
// recomputed from the task set and kept in a cache-aside StatsCache that is
// invalidated whenever a mutation touches the assignee's tasks.
package service
