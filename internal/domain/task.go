package domain

import (
	"errors"
	"strings"
	"time"
)

// Status is the stored lifecycle state of a task.
type Status string

// Stored statuses, plus the derived Overdue status which is never persisted.
const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
)

// Priority ranks tasks within a status group. Higher values sort first.
type Priority int

// Possible priority values
const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

// Score bounds accepted when finalizing a task.
const (
	MinScore = -1.0
	MaxScore = 1.0
)

// Task validation errors
var (
	ErrEmptyTitle       = errors.New("task title cannot be empty")
	ErrInvalidPriority  = errors.New("task priority must be 1, 2 or 3")
	ErrInvalidAssignee  = errors.New("task assignee ID must be positive")
	ErrInvalidAssigner  = errors.New("task assigner ID must be positive")
	ErrEmptyDeadline    = errors.New("task deadline cannot be empty")
	ErrScoreOutOfRange  = errors.New("score must be between -1 and 1")
	ErrEmptySubmission  = errors.New("submission file ID cannot be empty")
	ErrSubmitBeforeTask = errors.New("submission time precedes task creation")
)

// Task is a unit of assigned work with a deadline, a priority and a
// lifecycle status.
type Task struct {
	ID                      int64      `json:"id"`
	Title                   string     `json:"title"`
	Description             string     `json:"description"`
	AssigneeID              int64      `json:"assignee_id"`
	AssignerID              int64      `json:"assigner_id"`
	Priority                Priority   `json:"priority"`
	Deadline                time.Time  `json:"deadline"`
	CreatedAt               time.Time  `json:"created_at"`
	SubmittedAt             *time.Time `json:"submitted_at,omitempty"`
	SubmissionFileID        *string    `json:"submission_file_id,omitempty"`
	SubmissionScore         *int       `json:"submission_score,omitempty"`
	Score                   *float64   `json:"score,omitempty"`
	Status                  Status     `json:"status"`
	ReminderSent            bool       `json:"reminder_sent"`
	OverdueNotificationSent bool       `json:"overdue_notification_sent"`
}

// NewTask builds a Pending task. The ID is assigned by the repository.
func NewTask(title, description string, assigneeID, assignerID int64, priority Priority, deadline, now time.Time) (*Task, error) {
	task := &Task{
		Title:       strings.TrimSpace(title),
		Description: description,
		AssigneeID:  assigneeID,
		AssignerID:  assignerID,
		Priority:    priority,
		Deadline:    deadline,
		CreatedAt:   now,
		Status:      StatusPending,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the fields a caller supplies at creation.
func (t *Task) Validate() error {
	if t.Title == "" {
		return NewValidationError("title", "cannot be empty", ErrEmptyTitle)
	}
	if t.AssigneeID <= 0 {
		return NewValidationError("assignee_id", "must be positive", ErrInvalidAssignee)
	}
	if t.AssignerID <= 0 {
		return NewValidationError("assigner_id", "must be positive", ErrInvalidAssigner)
	}
	if !t.Priority.Valid() {
		return NewValidationError("priority", "must be 1, 2 or 3", ErrInvalidPriority)
	}
	if t.Deadline.IsZero() {
		return NewValidationError("deadline", "is required", ErrEmptyDeadline)
	}
	return nil
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

// Valid reports whether s is a status that may be stored.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusCompleted:
		return true
	default:
		return false
	}
}

// Submit moves a Pending task to Submitted. The submission score is computed
// once here, against the deadline in loc, and never recomputed.
func (t *Task) Submit(fileID string, submittedAt time.Time, loc *time.Location) error {
	if t.Status != StatusPending {
		return &TransitionError{Operation: "submit", From: t.Status}
	}
	if strings.TrimSpace(fileID) == "" {
		return NewValidationError("file_id", "cannot be empty", ErrEmptySubmission)
	}
	if submittedAt.Before(t.CreatedAt) {
		return NewValidationError("submitted_at", "precedes task creation", ErrSubmitBeforeTask)
	}

	score := ScoreSubmissionIn(loc, t.Deadline, submittedAt)
	t.SubmittedAt = &submittedAt
	t.SubmissionFileID = &fileID
	t.SubmissionScore = &score
	t.Status = StatusSubmitted
	return nil
}

// Complete finalizes a Submitted task with score. A nil score falls back to
// the score computed at submission.
func (t *Task) Complete(score *float64) error {
	if t.Status != StatusSubmitted {
		return &TransitionError{Operation: "score", From: t.Status}
	}

	var final float64
	switch {
	case score != nil:
		final = *score
	case t.SubmissionScore != nil:
		final = float64(*t.SubmissionScore)
	default:
		return NewValidationError("score", "is required", ErrScoreOutOfRange)
	}

	if final < MinScore || final > MaxScore {
		return NewValidationError("score", "must be between -1 and 1", ErrScoreOutOfRange)
	}

	t.Score = &final
	t.Status = StatusCompleted
	return nil
}

// CheckDeletable returns an error when the task may not be deleted.
func (t *Task) CheckDeletable() error {
	if t.Status == StatusCompleted {
		return &TransitionError{Operation: "delete", From: t.Status}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.SubmittedAt != nil {
		v := *t.SubmittedAt
		c.SubmittedAt = &v
	}
	if t.SubmissionFileID != nil {
		v := *t.SubmissionFileID
		c.SubmissionFileID = &v
	}
	if t.SubmissionScore != nil {
		v := *t.SubmissionScore
		c.SubmissionScore = &v
	}
	if t.Score != nil {
		v := *t.Score
		c.Score = &v
	}
	return &c
}

// ParseDeadline accepts an RFC 3339 instant or a YYYY-MM-DD date. A bare
// date is local midnight in loc.
func ParseDeadline(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, NewValidationError("deadline", "is required", ErrEmptyDeadline)
	}
	if loc == nil {
		loc = time.Local
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	if day, err := time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		return day, nil
	}
	return time.Time{}, NewValidationError("deadline", "must be RFC 3339 or YYYY-MM-DD", ErrInvalidDeadline)
}
