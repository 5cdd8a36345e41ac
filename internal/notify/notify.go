// Package notify defines how task notifications leave the system. The
// default transport writes structured log lines; email or chat transports
// implement the same Notifier interface.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/phrazzld/tasktrack-api/internal/domain"
)

// Kind names a notification template.
type Kind string

// Notification kinds
const (
	KindTaskAssigned     Kind = "task-assigned"
	KindDeadlineReminder Kind = "deadline-reminder"
	KindTaskScored       Kind = "task-scored"
	KindTaskDeleted      Kind = "task-deleted"
	KindTaskOverdue      Kind = "task-overdue"
)

// Message is one notification to one recipient.
type Message struct {
	Kind      Kind
	Task      domain.Task
	Recipient domain.User
	Extra     map[string]any
}

// Notifier delivers messages. Errors are soft failures: callers log them and
// never roll back task state because of them. Notifier implementations own
// their timeouts.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes each message as a structured log line.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

// Notify logs msg.
func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attrs := []any{
		slog.String("kind", string(msg.Kind)),
		slog.Int64("task_id", msg.Task.ID),
		slog.String("task_title", msg.Task.Title),
		slog.Time("deadline", msg.Task.Deadline),
		slog.Int64("recipient_id", msg.Recipient.ID),
		slog.String("recipient_email", msg.Recipient.Email),
	}
	for k, v := range msg.Extra {
		attrs = append(attrs, slog.Any(k, v))
	}

	n.logger.InfoContext(ctx, "notification sent", attrs...)
	return nil
}

// Recorder captures messages in memory. Fail, when set, decides per message
// whether delivery fails.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Fail     func(msg Message) error
}

// Notify records msg and applies Fail.
func (r *Recorder) Notify(ctx context.Context, msg Message) error {
	r.mu.Lock()
	fail := r.Fail
	r.mu.Unlock()

	if fail != nil {
		if err := fail(msg); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of everything delivered so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// OfKind returns the delivered messages of kind.
func (r *Recorder) OfKind(kind Kind) []Message {
	var out []Message
	for _, m := range r.Messages() {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Reset forgets recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
