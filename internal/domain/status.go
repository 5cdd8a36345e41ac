package domain

import "time"

// IsOverdue reports whether the task's deadline has passed at now. Completed
// tasks are never overdue.
func IsOverdue(t *Task, now time.Time) bool {
	if t.Status == StatusCompleted {
		return false
	}
	return now.After(t.Deadline)
}

// EffectiveStatus is the status shown to readers: Overdue when IsOverdue,
// otherwise the stored status.
func EffectiveStatus(t *Task, now time.Time) Status {
	if IsOverdue(t, now) {
		return StatusOverdue
	}
	return t.Status
}
