package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/tasktrack-api/internal/domain"
)

// Lifecycle event types.
const (
	TypeTaskAssigned  = "task.assigned"
	TypeTaskSubmitted = "task.submitted"
	TypeTaskScored    = "task.scored"
	TypeTaskDeleted   = "task.deleted"
)

// TaskEvent records a committed task lifecycle change. Task is a snapshot
// taken after the change, or before it for deletions.
type TaskEvent struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Task       domain.Task     `json:"task"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *TaskEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskEvent creates an event of eventType for task. A nil payload is
// omitted.
func NewTaskEvent(eventType string, task *domain.Task, payload interface{}, occurredAt time.Time) (*TaskEvent, error) {
	event := &TaskEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Task:       *task.Clone(),
		OccurredAt: occurredAt,
	}

	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		event.Payload = payloadBytes
	}

	return event, nil
}

// EventHandler processes task events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventEmitter publishes task events to handlers without the publisher
// knowing who listens.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *TaskEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}
