package store

import (
	"context"
	"time"

	"github.com/phrazzld/tasktrack-api/internal/domain"
)

// TaskFilter narrows List results. Zero fields match any task.
type TaskFilter struct {
	AssigneeID int64
	AssignerID int64
}

// Matches reports whether t satisfies the filter.
func (f TaskFilter) Matches(t *domain.Task) bool {
	if f.AssigneeID != 0 && t.AssigneeID != f.AssigneeID {
		return false
	}
	if f.AssignerID != 0 && t.AssignerID != f.AssignerID {
		return false
	}
	return true
}

// TaskMutation mutates a task in place inside an atomic update. Returning an
// error discards every change made by the mutation.
type TaskMutation func(t *domain.Task) error

// TaskStore defines the interface for task persistence. Implementations must
// be safe for concurrent use, and every mutation is all-or-nothing.
type TaskStore interface {
	// Create stores a new task and assigns its ID. IDs are never reused.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// List returns every task matching the filter in unspecified order.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// Update loads the task, applies fn to a private copy and commits the copy
	// only when fn succeeds. Returns the committed task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, id int64, fn TaskMutation) (*domain.Task, error)

	// Delete removes the task after check approves it. A check error aborts
	// the delete and is returned unchanged. Returns the deleted task.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id int64, check func(t *domain.Task) error) (*domain.Task, error)

	// FindReminderCandidates returns Pending tasks whose reminder has not been
	// sent and whose deadline lies in [from, to], both bounds inclusive.
	FindReminderCandidates(ctx context.Context, from, to time.Time) ([]*domain.Task, error)

	// FindOverdueCandidates returns Pending tasks whose deadline is before now
	// and whose overdue notification has not been sent.
	FindOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Task, error)

	// MarkReminderSent sets ReminderSent on a Pending task if it is not set
	// yet. It reports whether this call performed the transition; false means
	// another caller claimed it first or the task is gone or no longer Pending.
	MarkReminderSent(ctx context.Context, id int64) (bool, error)

	// MarkOverdueNotified claims OverdueNotificationSent the same way
	// MarkReminderSent claims ReminderSent.
	MarkOverdueNotified(ctx context.Context, id int64) (bool, error)
}

// UserDirectory resolves users owned by the external user service.
type UserDirectory interface {
	// FindUser returns ErrUserNotFound when no user has the ID.
	FindUser(ctx context.Context, id int64) (*domain.User, error)
}
