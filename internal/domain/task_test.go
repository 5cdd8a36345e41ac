package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLoc = time.FixedZone("UTC+2", 2*60*60)

func mustDeadline(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := domain.ParseDeadline(value, testLoc)
	require.NoError(t, err)
	return d
}

func newPendingTask(t *testing.T) *domain.Task {
	t.Helper()
	created := time.Date(2025, 6, 1, 10, 0, 0, 0, testLoc)
	task, err := domain.NewTask("Write report", "Q2 numbers", 2, 1, domain.PriorityMedium,
		mustDeadline(t, "2025-06-11"), created)
	require.NoError(t, err)
	return task
}

func TestNewTask_Validation(t *testing.T) {
	deadline := time.Date(2025, 6, 11, 0, 0, 0, 0, testLoc)
	now := deadline.AddDate(0, 0, -5)

	tests := []struct {
		name     string
		title    string
		assignee int64
		assigner int64
		priority domain.Priority
		deadline time.Time
		field    string
		cause    error
	}{
		{"empty title", "  ", 2, 1, domain.PriorityLow, deadline, "title", domain.ErrEmptyTitle},
		{"missing assignee", "t", 0, 1, domain.PriorityLow, deadline, "assignee_id", domain.ErrInvalidAssignee},
		{"missing assigner", "t", 2, -1, domain.PriorityLow, deadline, "assigner_id", domain.ErrInvalidAssigner},
		{"bad priority", "t", 2, 1, domain.Priority(7), deadline, "priority", domain.ErrInvalidPriority},
		{"zero deadline", "t", 2, 1, domain.PriorityHigh, time.Time{}, "deadline", domain.ErrEmptyDeadline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := domain.NewTask(tt.title, "", tt.assignee, tt.assigner, tt.priority, tt.deadline, now)
			require.Error(t, err)
			assert.Nil(t, task)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.ErrorIs(t, err, tt.cause)

			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestNewTask_Defaults(t *testing.T) {
	task := newPendingTask(t)

	assert.Equal(t, domain.StatusPending, task.Status)
	assert.Nil(t, task.SubmittedAt)
	assert.Nil(t, task.Score)
	assert.False(t, task.ReminderSent)
	assert.False(t, task.OverdueNotificationSent)
	assert.Zero(t, task.ID)
}

func TestTaskLifecycle(t *testing.T) {
	task := newPendingTask(t)
	submittedAt := time.Date(2025, 6, 10, 23, 59, 0, 0, testLoc)

	require.NoError(t, task.Submit("file-1", submittedAt, testLoc))
	assert.Equal(t, domain.StatusSubmitted, task.Status)
	require.NotNil(t, task.SubmittedAt)
	assert.True(t, task.SubmittedAt.Equal(submittedAt))
	require.NotNil(t, task.SubmissionScore)
	assert.Equal(t, domain.ScoreEarly, *task.SubmissionScore)
	assert.Nil(t, task.Score, "score stays nil until the task is completed")

	err := task.Submit("file-2", submittedAt, testLoc)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, "file-1", *task.SubmissionFileID)

	require.NoError(t, task.Complete(nil))
	assert.Equal(t, domain.StatusCompleted, task.Status)
	require.NotNil(t, task.Score)
	assert.Equal(t, 1.0, *task.Score)

	other := 0.5
	assert.ErrorIs(t, task.Complete(&other), domain.ErrInvalidTransition)
	assert.Equal(t, 1.0, *task.Score, "score is immutable once set")

	assert.ErrorIs(t, task.CheckDeletable(), domain.ErrInvalidTransition)
}

func TestTaskComplete(t *testing.T) {
	t.Run("score from pending is rejected", func(t *testing.T) {
		task := newPendingTask(t)
		score := 1.0
		assert.ErrorIs(t, task.Complete(&score), domain.ErrInvalidTransition)
		assert.Equal(t, domain.StatusPending, task.Status)
		assert.Nil(t, task.Score)
	})

	for _, bad := range []float64{-1.01, 1.5, 100} {
		t.Run("out of range", func(t *testing.T) {
			task := newPendingTask(t)
			require.NoError(t, task.Submit("f", task.CreatedAt.Add(time.Hour), testLoc))

			score := bad
			err := task.Complete(&score)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.ErrorIs(t, err, domain.ErrScoreOutOfRange)
			assert.Equal(t, domain.StatusSubmitted, task.Status)
			assert.Nil(t, task.Score)
		})
	}

	t.Run("explicit score wins", func(t *testing.T) {
		task := newPendingTask(t)
		require.NoError(t, task.Submit("f", task.CreatedAt.Add(time.Hour), testLoc))

		score := -0.5
		require.NoError(t, task.Complete(&score))
		assert.Equal(t, -0.5, *task.Score)
	})
}

func TestTaskSubmit_Validation(t *testing.T) {
	task := newPendingTask(t)

	err := task.Submit(" ", task.CreatedAt.Add(time.Hour), testLoc)
	assert.ErrorIs(t, err, domain.ErrEmptySubmission)

	err = task.Submit("f", task.CreatedAt.Add(-time.Hour), testLoc)
	assert.ErrorIs(t, err, domain.ErrSubmitBeforeTask)

	assert.Equal(t, domain.StatusPending, task.Status)
	assert.Nil(t, task.SubmittedAt)
}

func TestTaskClone(t *testing.T) {
	task := newPendingTask(t)
	require.NoError(t, task.Submit("f", task.CreatedAt.Add(time.Hour), testLoc))

	clone := task.Clone()
	*clone.SubmissionFileID = "changed"
	clone.Title = "changed"

	assert.Equal(t, "f", *task.SubmissionFileID)
	assert.Equal(t, "Write report", task.Title)
	assert.Nil(t, (*domain.Task)(nil).Clone())
}

func TestParseDeadline(t *testing.T) {
	d, err := domain.ParseDeadline("2025-06-11", testLoc)
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2025, 6, 11, 0, 0, 0, 0, testLoc)))

	d, err = domain.ParseDeadline("2025-06-11T15:30:00Z", testLoc)
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2025, 6, 11, 15, 30, 0, 0, time.UTC)))

	_, err = domain.ParseDeadline("11/06/2025", testLoc)
	assert.ErrorIs(t, err, domain.ErrInvalidDeadline)

	_, err = domain.ParseDeadline("", testLoc)
	assert.ErrorIs(t, err, domain.ErrEmptyDeadline)
}

func TestStatusDerivation(t *testing.T) {
	task := newPendingTask(t)
	before := task.Deadline.Add(-time.Minute)
	after := task.Deadline.Add(time.Minute)

	assert.False(t, domain.IsOverdue(task, before))
	assert.False(t, domain.IsOverdue(task, task.Deadline), "deadline instant itself is not overdue")
	assert.True(t, domain.IsOverdue(task, after))
	assert.Equal(t, domain.StatusOverdue, domain.EffectiveStatus(task, after))
	assert.Equal(t, domain.StatusPending, domain.EffectiveStatus(task, before))

	require.NoError(t, task.Submit("f", after, testLoc))
	assert.Equal(t, domain.StatusOverdue, domain.EffectiveStatus(task, after.Add(time.Hour)))

	require.NoError(t, task.Complete(nil))
	farFuture := task.Deadline.AddDate(10, 0, 0)
	assert.False(t, domain.IsOverdue(task, farFuture), "completed tasks are never overdue")
	assert.Equal(t, domain.StatusCompleted, domain.EffectiveStatus(task, farFuture))
}

func TestErrorTypes(t *testing.T) {
	ve := domain.NewValidationError("score", "is bad", nil)
	assert.ErrorIs(t, ve, domain.ErrValidation)
	assert.Equal(t, "validation failed: score is bad", ve.Error())

	te := &domain.TransitionError{Operation: "delete", From: domain.StatusCompleted}
	assert.ErrorIs(t, te, domain.ErrInvalidTransition)
	assert.Contains(t, te.Error(), "completed")
}
