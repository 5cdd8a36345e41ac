package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/events"
	"github.com/phrazzld/tasktrack-api/internal/platform/clock"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/store"
	"github.com/phrazzld/tasktrack-api/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc     TaskService
	tasks   *memory.TaskStore
	emitter *events.InMemoryEventEmitter
	events  *[]*events.TaskEvent
	cache   *mapStatsCache
	clock   *clock.Fake
	logs    *logger.TestLogBuffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	buf, log := logger.SetupTestLogger(t)

	h := &harness{
		tasks:   memory.NewTaskStore(),
		emitter: events.NewInMemoryEventEmitter(log),
		events:  &[]*events.TaskEvent{},
		cache:   newMapStatsCache(),
		clock:   clock.NewFake(now),
		logs:    buf,
	}

	var mu sync.Mutex
	h.emitter.RegisterHandler(events.HandlerFunc(func(ctx context.Context, e *events.TaskEvent) error {
		mu.Lock()
		defer mu.Unlock()
		*h.events = append(*h.events, e)
		return nil
	}))

	svc, err := NewTaskService(Deps{
		Tasks:  h.tasks,
		Events: h.emitter,
		Stats:  h.cache,
		Clock:  h.clock,
	}, Options{Location: time.UTC}, log)
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) create(t *testing.T, assignee int64, priority domain.Priority, deadline string) *domain.Task {
	t.Helper()
	task, err := h.svc.CreateTask(context.Background(), CreateTaskInput{
		Title:      "task",
		AssigneeID: assignee,
		AssignerID: 1,
		Priority:   priority,
		Deadline:   deadline,
	})
	require.NoError(t, err)
	return task
}

func (h *harness) eventTypes() []string {
	var out []string
	for _, e := range *h.events {
		out = append(out, e.Type)
	}
	return out
}

func TestNewTaskService(t *testing.T) {
	_, err := NewTaskService(Deps{}, Options{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	svc, err := NewTaskService(Deps{Tasks: memory.NewTaskStore()}, Options{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestCreateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("stores pending task and emits assignment", func(t *testing.T) {
		h := newHarness(t)
		task, err := h.svc.CreateTask(ctx, CreateTaskInput{
			Title:       "  Quarterly report ",
			Description: "numbers",
			AssigneeID:  2,
			AssignerID:  1,
			Priority:    domain.PriorityHigh,
			Deadline:    "2025-06-20",
		})
		require.NoError(t, err)

		assert.Equal(t, int64(1), task.ID)
		assert.Equal(t, "Quarterly report", task.Title)
		assert.Equal(t, domain.StatusPending, task.Status)
		assert.True(t, task.Deadline.Equal(time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)))
		assert.True(t, task.CreatedAt.Equal(now))
		assert.False(t, task.ReminderSent)
		assert.Equal(t, []string{events.TypeTaskAssigned}, h.eventTypes())
	})

	t.Run("accepts RFC 3339 deadline", func(t *testing.T) {
		h := newHarness(t)
		task := h.create(t, 2, domain.PriorityLow, "2025-06-20T17:00:00Z")
		assert.True(t, task.Deadline.Equal(time.Date(2025, 6, 20, 17, 0, 0, 0, time.UTC)))
	})

	tests := []struct {
		name  string
		input CreateTaskInput
		field string
	}{
		{"empty title", CreateTaskInput{Title: " ", AssigneeID: 2, AssignerID: 1, Priority: 2, Deadline: "2025-06-20"}, "title"},
		{"bad priority", CreateTaskInput{Title: "t", AssigneeID: 2, AssignerID: 1, Priority: 4, Deadline: "2025-06-20"}, "priority"},
		{"missing assignee", CreateTaskInput{Title: "t", AssignerID: 1, Priority: 2, Deadline: "2025-06-20"}, "assignee_id"},
		{"missing deadline", CreateTaskInput{Title: "t", AssigneeID: 2, AssignerID: 1, Priority: 2}, "deadline"},
		{"bad deadline", CreateTaskInput{Title: "t", AssigneeID: 2, AssignerID: 1, Priority: 2, Deadline: "20/06/2025"}, "deadline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.svc.CreateTask(ctx, tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)

			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)

			all, err := h.tasks.List(ctx, store.TaskFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
			assert.Empty(t, *h.events)
		})
	}
}

func TestCreateTask_EmitterFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	buf, log := logger.SetupTestLogger(t)

	emitter := &MockEventEmitter{}
	emitter.On("EmitEvent", mock.Anything, mock.MatchedBy(func(e *events.TaskEvent) bool {
		return e.Type == events.TypeTaskAssigned
	})).Return(errors.New("queue full")).Once()

	svc, err := NewTaskService(Deps{Tasks: memory.NewTaskStore(), Events: emitter, Clock: clock.NewFake(now)},
		Options{Location: time.UTC}, log)
	require.NoError(t, err)

	task, err := svc.CreateTask(ctx, CreateTaskInput{
		Title: "t", AssigneeID: 2, AssignerID: 1, Priority: domain.PriorityLow, Deadline: "2025-06-20",
	})
	require.NoError(t, err)
	assert.NotZero(t, task.ID)
	emitter.AssertExpectations(t)
	logger.AssertLogContains(t, buf, "event delivery failed")
}

func TestGetTask(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	task := h.create(t, 2, domain.PriorityMedium, "2025-06-10")

	view, err := h.svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, view.EffectiveStatus)
	assert.True(t, view.IsOverdue)
	assert.Equal(t, domain.StatusPending, view.Status)

	_, err = h.svc.GetTask(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmitTask(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		deadline    string
		submittedAt time.Time
		wantScore   int
	}{
		{"day before deadline", "2025-06-12T18:00:00Z", time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC), domain.ScoreEarly},
		{"same day after deadline time", "2025-06-11T08:00:00Z", time.Date(2025, 6, 11, 20, 0, 0, 0, time.UTC), domain.ScoreOnDay},
		{"day after deadline", "2025-06-10", time.Date(2025, 6, 11, 0, 30, 0, 0, time.UTC), domain.ScoreLate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.clock.Set(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
			task := h.create(t, 2, domain.PriorityMedium, tt.deadline)

			at := tt.submittedAt
			got, err := h.svc.SubmitTask(ctx, task.ID, &at, "file-7")
			require.NoError(t, err)

			assert.Equal(t, domain.StatusSubmitted, got.Status)
			require.NotNil(t, got.SubmissionScore)
			assert.Equal(t, tt.wantScore, *got.SubmissionScore)
			assert.Equal(t, "file-7", *got.SubmissionFileID)
			assert.True(t, got.SubmittedAt.Equal(at))
			assert.Nil(t, got.Score)
		})
	}

	t.Run("defaults submission time to now", func(t *testing.T) {
		h := newHarness(t)
		task := h.create(t, 2, domain.PriorityMedium, "2025-06-20")

		got, err := h.svc.SubmitTask(ctx, task.ID, nil, "file-1")
		require.NoError(t, err)
		assert.True(t, got.SubmittedAt.Equal(now))
		assert.Contains(t, h.eventTypes(), events.TypeTaskSubmitted)
	})

	t.Run("rejects second submission", func(t *testing.T) {
		h := newHarness(t)
		task := h.create(t, 2, domain.PriorityMedium, "2025-06-20")
		_, err := h.svc.SubmitTask(ctx, task.ID, nil, "file-1")
		require.NoError(t, err)

		_, err = h.svc.SubmitTask(ctx, task.ID, nil, "file-2")
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		stored, err := h.tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "file-1", *stored.SubmissionFileID)
	})

	t.Run("rejects empty file id", func(t *testing.T) {
		h := newHarness(t)
		task := h.create(t, 2, domain.PriorityMedium, "2025-06-20")
		_, err := h.svc.SubmitTask(ctx, task.ID, nil, " ")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("unknown task", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.SubmitTask(ctx, 42, nil, "file")
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestScoreTask(t *testing.T) {
	ctx := context.Background()

	submitted := func(t *testing.T, h *harness) *domain.Task {
		t.Helper()
		task := h.create(t, 2, domain.PriorityMedium, "2025-06-20")
		_, err := h.svc.SubmitTask(ctx, task.ID, nil, "file")
		require.NoError(t, err)
		return task
	}

	t.Run("explicit score completes task", func(t *testing.T) {
		h := newHarness(t)
		task := submitted(t, h)
		score := 0.5

		got, err := h.svc.ScoreTask(ctx, task.ID, &score)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, got.Status)
		assert.Equal(t, 0.5, *got.Score)
		assert.Contains(t, h.eventTypes(), events.TypeTaskScored)
	})

	t.Run("nil score uses submission score", func(t *testing.T) {
		h := newHarness(t)
		task := submitted(t, h)

		got, err := h.svc.ScoreTask(ctx, task.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, float64(domain.ScoreEarly), *got.Score)
	})

	t.Run("out of range leaves task unchanged", func(t *testing.T) {
		h := newHarness(t)
		task := submitted(t, h)
		score := 1.5

		_, err := h.svc.ScoreTask(ctx, task.ID, &score)
		assert.ErrorIs(t, err, domain.ErrValidation)

		stored, err := h.tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSubmitted, stored.Status)
		assert.Nil(t, stored.Score)
	})

	t.Run("pending task cannot be scored", func(t *testing.T) {
		h := newHarness(t)
		task := h.create(t, 2, domain.PriorityMedium, "2025-06-20")
		score := 1.0

		_, err := h.svc.ScoreTask(ctx, task.ID, &score)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("completed task cannot be rescored", func(t *testing.T) {
		h := newHarness(t)
		task := submitted(t, h)
		first, second := 1.0, -1.0
		_, err := h.svc.ScoreTask(ctx, task.ID, &first)
		require.NoError(t, err)

		_, err = h.svc.ScoreTask(ctx, task.ID, &second)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		stored, err := h.tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, 1.0, *stored.Score)
	})
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()

	t.Run("pending task is removed", func(t *testing.T) {
		h := newHarness(t)
		task := h.create(t, 2, domain.PriorityMedium, "2025-06-20")

		require.NoError(t, h.svc.DeleteTask(ctx, task.ID))
		_, err := h.tasks.GetByID(ctx, task.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.Contains(t, h.eventTypes(), events.TypeTaskDeleted)
	})

	t.Run("completed task is kept", func(t *testing.T) {
		h := newHarness(t)
		task := h.create(t, 2, domain.PriorityMedium, "2025-06-20")
		_, err := h.svc.SubmitTask(ctx, task.ID, nil, "file")
		require.NoError(t, err)
		_, err = h.svc.ScoreTask(ctx, task.ID, nil)
		require.NoError(t, err)

		err = h.svc.DeleteTask(ctx, task.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		all, err := h.tasks.List(ctx, store.TaskFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
		assert.NotContains(t, h.eventTypes(), events.TypeTaskDeleted)
	})

	t.Run("unknown task", func(t *testing.T) {
		h := newHarness(t)
		assert.ErrorIs(t, h.svc.DeleteTask(ctx, 5), store.ErrTaskNotFound)
	})
}

func TestListTasks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for i := 0; i < 37; i++ {
		assignee := int64(2)
		if i%2 == 1 {
			assignee = 3
		}
		h.create(t, assignee, domain.Priority(i%3+1), fmt.Sprintf("2025-07-%02d", i%28+1))
	}

	first, err := h.svc.ListTasks(ctx, store.TaskFilter{}, 1, 0)
	require.NoError(t, err)
	assert.Len(t, first.Items, DefaultPageLimit)
	assert.Equal(t, 37, first.Total)
	assert.Equal(t, 3, first.TotalPages)
	assert.True(t, first.HasMore)

	last, err := h.svc.ListTasks(ctx, store.TaskFilter{}, 3, 0)
	require.NoError(t, err)
	assert.Len(t, last.Items, 7)
	assert.False(t, last.HasMore)

	past, err := h.svc.ListTasks(ctx, store.TaskFilter{}, 9, 0)
	require.NoError(t, err)
	assert.Empty(t, past.Items)
	assert.False(t, past.HasMore)

	clamped, err := h.svc.ListTasks(ctx, store.TaskFilter{}, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxPageLimit, clamped.Limit)
	assert.Len(t, clamped.Items, 37)

	for i := 1; i < len(clamped.Items); i++ {
		prev, cur := clamped.Items[i-1], clamped.Items[i]
		assert.GreaterOrEqual(t, int(prev.Priority), int(cur.Priority))
	}

	mine, err := h.svc.ListTasks(ctx, store.TaskFilter{AssigneeID: 3}, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 18, mine.Total)
	for _, item := range mine.Items {
		assert.Equal(t, int64(3), item.AssigneeID)
	}
}

func TestListTasks_OverdueFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	future := h.create(t, 2, domain.PriorityHigh, "2025-06-30")
	late := h.create(t, 2, domain.PriorityLow, "2025-06-01")

	page, err := h.svc.ListTasks(ctx, store.TaskFilter{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, late.ID, page.Items[0].ID)
	assert.Equal(t, domain.StatusOverdue, page.Items[0].EffectiveStatus)
	assert.Equal(t, future.ID, page.Items[1].ID)
}

func TestUserStatistics(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	a := h.create(t, 2, domain.PriorityMedium, "2025-06-20")
	b := h.create(t, 2, domain.PriorityMedium, "2025-06-05")
	h.create(t, 2, domain.PriorityMedium, "2025-06-25")
	h.create(t, 3, domain.PriorityMedium, "2025-06-25")

	_, err := h.svc.SubmitTask(ctx, a.ID, nil, "f")
	require.NoError(t, err)
	_, err = h.svc.SubmitTask(ctx, b.ID, nil, "f")
	require.NoError(t, err)
	high, low := 1.0, 0.25
	_, err = h.svc.ScoreTask(ctx, a.ID, &high)
	require.NoError(t, err)
	_, err = h.svc.ScoreTask(ctx, b.ID, &low)
	require.NoError(t, err)

	stats, err := h.svc.UserStatistics(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStats{
		UserID:         2,
		TotalAssigned:  3,
		TotalCompleted: 2,
		AverageScore:   0.6,
		OnTime:         1,
		Late:           1,
	}, *stats)

	_, err = h.svc.UserStatistics(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, h.cache.hitCount())

	_, err = h.svc.UserStatistics(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUserStatistics_SubmittedTasksNotTimed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	done := h.create(t, 2, domain.PriorityMedium, "2025-06-05")
	early := h.create(t, 2, domain.PriorityMedium, "2025-06-20")
	late := h.create(t, 2, domain.PriorityMedium, "2025-06-05")

	for _, task := range []*domain.Task{done, early, late} {
		_, err := h.svc.SubmitTask(ctx, task.ID, nil, "f")
		require.NoError(t, err)
	}
	_, err := h.svc.ScoreTask(ctx, done.ID, nil)
	require.NoError(t, err)

	stats, err := h.svc.UserStatistics(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalAssigned)
	assert.Equal(t, 1, stats.TotalCompleted)
	assert.Equal(t, 0, stats.OnTime)
	assert.Equal(t, 1, stats.Late)
	assert.LessOrEqual(t, stats.OnTime+stats.Late, stats.TotalCompleted)
}

// Every mutation must leave the cached statistics equal to a fresh
// recomputation.
func TestUserStatistics_CacheMatchesRecomputation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	check := func() {
		t.Helper()
		got, err := h.svc.UserStatistics(ctx, 2)
		require.NoError(t, err)
		all, err := h.tasks.List(ctx, store.TaskFilter{})
		require.NoError(t, err)
		assert.Equal(t, domain.ComputeUserStats(2, all), *got)
	}

	check()
	task := h.create(t, 2, domain.PriorityHigh, "2025-06-20")
	check()
	other := h.create(t, 2, domain.PriorityLow, "2025-06-21")
	check()
	_, err := h.svc.SubmitTask(ctx, task.ID, nil, "f")
	require.NoError(t, err)
	check()
	_, err = h.svc.ScoreTask(ctx, task.ID, nil)
	require.NoError(t, err)
	check()
	require.NoError(t, h.svc.DeleteTask(ctx, other.ID))
	check()
}

func TestUserStatistics_MutationDuringCacheWrite(t *testing.T) {
	ctx := context.Background()
	_, log := logger.SetupTestLogger(t)

	tasks := memory.NewTaskStore()
	cache := &hookStatsCache{mapStatsCache: newMapStatsCache()}
	svc, err := NewTaskService(Deps{Tasks: tasks, Stats: cache, Clock: clock.NewFake(now)},
		Options{Location: time.UTC}, log)
	require.NoError(t, err)

	input := CreateTaskInput{Title: "t", AssigneeID: 2, AssignerID: 1, Priority: domain.PriorityLow, Deadline: "2025-06-20"}
	_, err = svc.CreateTask(ctx, input)
	require.NoError(t, err)

	var once sync.Once
	cache.beforeSet = func() {
		once.Do(func() {
			_, err := svc.CreateTask(ctx, input)
			require.NoError(t, err)
		})
	}

	first, err := svc.UserStatistics(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalAssigned)

	second, err := svc.UserStatistics(ctx, 2)
	require.NoError(t, err)
	all, err := tasks.List(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, domain.ComputeUserStats(2, all), *second)
	assert.Equal(t, 2, second.TotalAssigned)
}

func TestUserStatistics_ConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create(t, 2, domain.PriorityHigh, "2025-06-20")

	var wg sync.WaitGroup
	results := make([]*domain.UserStats, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stats, err := h.svc.UserStatistics(ctx, 2)
			assert.NoError(t, err)
			results[i] = stats
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, 1, r.TotalAssigned)
	}
}

func TestUserStatistics_CacheFailuresFallBack(t *testing.T) {
	ctx := context.Background()
	buf, log := logger.SetupTestLogger(t)

	tasks := memory.NewTaskStore()
	task, err := domain.NewTask("t", "", 2, 1, domain.PriorityLow, now.Add(time.Hour), now)
	require.NoError(t, err)
	require.NoError(t, tasks.Create(ctx, task))

	cache := &MockStatsCache{}
	cache.On("Get", mock.Anything, int64(2)).Return(nil, false, errors.New("redis down"))
	cache.On("Set", mock.Anything, mock.AnythingOfType("domain.UserStats")).Return(errors.New("redis down"))

	svc, err := NewTaskService(Deps{Tasks: tasks, Stats: cache, Clock: clock.NewFake(now)}, Options{}, log)
	require.NoError(t, err)

	stats, err := svc.UserStatistics(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalAssigned)
	cache.AssertExpectations(t)
	logger.AssertLogContains(t, buf, "stats cache read failed")
	logger.AssertLogContains(t, buf, "stats cache write failed")
}
