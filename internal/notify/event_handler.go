package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktrack-api/internal/dispatch"
	"github.com/phrazzld/tasktrack-api/internal/events"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// Submitter queues a job without blocking.
type Submitter interface {
	TrySubmit(job dispatch.Job) (*dispatch.Pending, error)
}

// EventHandler turns task lifecycle events into notifications for the
// assignee and queues their delivery on the dispatcher.
type EventHandler struct {
	notifier Notifier
	users    store.UserDirectory
	jobs     Submitter
	logger   *slog.Logger
}

var _ events.EventHandler = (*EventHandler)(nil)

// NewEventHandler creates the handler.
func NewEventHandler(notifier Notifier, users store.UserDirectory, jobs Submitter, logger *slog.Logger) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		notifier: notifier,
		users:    users,
		jobs:     jobs,
		logger:   logger.With("component", "notification_event_handler"),
	}
}

// EventTypes lists the task events that produce a notification.
func EventTypes() []string {
	return []string{events.TypeTaskAssigned, events.TypeTaskScored, events.TypeTaskDeleted}
}

// KindForEvent maps an event type to the notification it triggers.
func KindForEvent(eventType string) (Kind, bool) {
	switch eventType {
	case events.TypeTaskAssigned:
		return KindTaskAssigned, true
	case events.TypeTaskScored:
		return KindTaskScored, true
	case events.TypeTaskDeleted:
		return KindTaskDeleted, true
	default:
		return "", false
	}
}

// HandleEvent resolves the assignee and queues the notification. Delivery
// itself happens later on a dispatcher worker.
func (h *EventHandler) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	kind, ok := KindForEvent(event.Type)
	if !ok {
		h.logger.Debug("ignoring event without notification",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	log := h.logger.With(
		"event_id", event.ID,
		"event_type", event.Type,
		"task_id", event.Task.ID,
		"assignee_id", event.Task.AssigneeID,
	)

	recipient, err := h.users.FindUser(ctx, event.Task.AssigneeID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Warn("assignee not found, notification skipped")
			return nil
		}
		log.Error("failed to resolve assignee", "error", err)
		return fmt.Errorf("resolve assignee: %w", err)
	}

	msg := Message{Kind: kind, Task: event.Task, Recipient: *recipient}
	if kind == KindTaskScored && event.Task.Score != nil {
		msg.Extra = map[string]any{"score": *event.Task.Score}
	}

	job := dispatch.NewJob(string(kind), func(ctx context.Context) error {
		return h.notifier.Notify(ctx, msg)
	})
	if _, err := h.jobs.TrySubmit(job); err != nil {
		log.Error("failed to queue notification", "kind", kind, "error", err)
		return fmt.Errorf("queue %s notification: %w", kind, err)
	}

	log.Debug("notification queued", "kind", kind, "job_id", job.ID())
	return nil
}
