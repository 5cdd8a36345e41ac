package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// HandlerError reports a handler that failed to process a task event.
type HandlerError struct {
	EventType string
	TaskID    int64
	Handler   string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler failed on %s for task %d: %v", e.Handler, e.EventType, e.TaskID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

type subscription struct {
	handler EventHandler
	name    string
	// types is nil for handlers that receive every event.
	types map[string]struct{}
}

func (s subscription) wants(eventType string) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// InMemoryEventEmitter delivers task events synchronously, in registration
// order, to the handlers subscribed to the event's type.
type InMemoryEventEmitter struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		logger: logger.With("component", "task_event_emitter"),
	}
}

// RegisterHandler subscribes handler to the given event types, or to every
// type when none are given.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler, types ...string) {
	sub := subscription{handler: handler, name: fmt.Sprintf("%T", handler)}
	if len(types) > 0 {
		sub.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, sub)
	e.logger.Debug("event handler registered",
		"handler", sub.name,
		"event_types", types,
		"handler_count", len(e.subs))
}

// EmitEvent hands event to each subscribed handler. Every handler runs even
// when an earlier one fails; the first failure is returned as a *HandlerError.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskEvent) error {
	e.mu.RLock()
	subs := make([]subscription, 0, len(e.subs))
	for _, s := range e.subs {
		if s.wants(event.Type) {
			subs = append(subs, s)
		}
	}
	e.mu.RUnlock()

	log := e.logger.With(
		"event_id", event.ID,
		"event_type", event.Type,
		"task_id", event.Task.ID,
		"assignee_id", event.Task.AssigneeID,
	)

	if len(subs) == 0 {
		log.Debug("no handlers subscribed to task event")
		return nil
	}

	var firstErr error
	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, event); err != nil {
			log.Error("task event handler failed", "handler", s.name, "error", err)
			if firstErr == nil {
				firstErr = &HandlerError{
					EventType: event.Type,
					TaskID:    event.Task.ID,
					Handler:   s.name,
					Err:       err,
				}
			}
		}
	}
	if firstErr == nil {
		log.Debug("task event delivered", "handlers", len(subs))
	}
	return firstErr
}
