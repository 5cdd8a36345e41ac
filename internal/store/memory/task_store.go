// Package memory provides in-process implementations of the store contracts.
// They back the default "memory" database driver and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// TaskStore keeps tasks in a map guarded by a single mutex. Stored tasks are
// never handed out directly; callers always receive clones.
type TaskStore struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]*domain.Task
}

var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[int64]*domain.Task),
	}
}

// Create assigns the next ID and stores a copy of task.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := task.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	task.ID = s.nextID
	s.tasks[task.ID] = task.Clone()
	return nil
}

// GetByID returns a copy of the task.
func (s *TaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return task.Clone(), nil
}

// List returns copies of all tasks matching filter.
func (s *TaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	return s.collect(ctx, filter.Matches)
}

// Update applies fn to a copy and swaps it in only when fn succeeds.
func (s *TaskStore) Update(ctx context.Context, id int64, fn store.TaskMutation) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	draft := current.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	draft.ID = id

	s.tasks[id] = draft
	return draft.Clone(), nil
}

// Delete removes the task when check approves it.
func (s *TaskStore) Delete(ctx context.Context, id int64, check func(t *domain.Task) error) (*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if check != nil {
		if err := check(current.Clone()); err != nil {
			return nil, err
		}
	}

	delete(s.tasks, id)
	return current.Clone(), nil
}

// FindReminderCandidates returns Pending, unreminded tasks due within [from, to].
func (s *TaskStore) FindReminderCandidates(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	return s.collect(ctx, func(t *domain.Task) bool {
		return t.Status == domain.StatusPending &&
			!t.ReminderSent &&
			!t.Deadline.Before(from) &&
			!t.Deadline.After(to)
	})
}

// FindOverdueCandidates returns Pending tasks past their deadline that have
// not had an overdue notification.
func (s *TaskStore) FindOverdueCandidates(ctx context.Context, now time.Time) ([]*domain.Task, error) {
	return s.collect(ctx, func(t *domain.Task) bool {
		return t.Status == domain.StatusPending &&
			!t.OverdueNotificationSent &&
			t.Deadline.Before(now)
	})
}

// MarkReminderSent claims the reminder flag.
func (s *TaskStore) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	return s.claim(ctx, id, func(t *domain.Task) *bool { return &t.ReminderSent })
}

// MarkOverdueNotified claims the overdue notification flag.
func (s *TaskStore) MarkOverdueNotified(ctx context.Context, id int64) (bool, error) {
	return s.claim(ctx, id, func(t *domain.Task) *bool { return &t.OverdueNotificationSent })
}

func (s *TaskStore) claim(ctx context.Context, id int64, flag func(t *domain.Task) *bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status != domain.StatusPending {
		return false, nil
	}

	f := flag(task)
	if *f {
		return false, nil
	}
	*f = true
	return true, nil
}

func (s *TaskStore) collect(ctx context.Context, match func(t *domain.Task) bool) ([]*domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if match(t) {
			tasks = append(tasks, t.Clone())
		}
	}
	return tasks, nil
}
