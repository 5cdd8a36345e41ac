package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/tasktrack-api/internal/domain"
)

func TestNewTaskEvent(t *testing.T) {
	score := 1.0
	task := &domain.Task{ID: 9, Title: "t", AssigneeID: 2, Score: &score, Status: domain.StatusCompleted}
	at := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)

	event, err := NewTaskEvent(TypeTaskScored, task, map[string]float64{"score": 1}, at)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, TypeTaskScored, event.Type)
	assert.Equal(t, int64(9), event.Task.ID)
	assert.Equal(t, at, event.OccurredAt)

	var payload map[string]float64
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, 1.0, payload["score"])

	*task.Score = -1
	assert.Equal(t, 1.0, *event.Task.Score, "event holds a snapshot")
}

func TestNewTaskEvent_NoPayload(t *testing.T) {
	event, err := NewTaskEvent(TypeTaskDeleted, &domain.Task{ID: 1}, nil, time.Now())
	require.NoError(t, err)
	assert.Nil(t, event.Payload)
}

func TestNewTaskEvent_BadPayload(t *testing.T) {
	_, err := NewTaskEvent(TypeTaskAssigned, &domain.Task{ID: 1}, make(chan int), time.Now())
	assert.Error(t, err)
}

func TestHandlerFunc(t *testing.T) {
	var got *TaskEvent
	h := HandlerFunc(func(ctx context.Context, e *TaskEvent) error {
		got = e
		return nil
	})

	event := &TaskEvent{Type: TypeTaskSubmitted}
	require.NoError(t, h.HandleEvent(context.Background(), event))
	assert.Same(t, event, got)
}

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	LastEvent    *TaskEvent
	HandlerError error
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (m *MockEventHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	m.LastEvent = event
	m.HandledCount++
	return m.HandlerError
}
