// Package scheduler runs the periodic task sweeps: the deadline reminder
// sweep, which warns assignees of Pending tasks due today or tomorrow, and
// the overdue sweep, which tells them once that a Pending task missed its
// deadline.
//
// Each sweep claims a task's notification flag with a compare-and-set before
// queuing the notification on the dispatcher, so a task is notified at most
// once per flag even when sweeps run concurrently across processes. Within a
// process a sweep never overlaps itself: scheduled ticks are skipped and
// manual runs fail with ErrSweepInProgress while the same job is running.
package scheduler
