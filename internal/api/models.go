package api

import (
	"time"

	"github.com/phrazzld/tasktrack-api/internal/domain"
)

// CreateTaskRequest defines the payload for creating a task. The caller
// becomes the assigner.
type CreateTaskRequest struct {
	Title       string `json:"title"       validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	AssigneeID  int64  `json:"assignee_id" validate:"required,gt=0"`
	Priority    int    `json:"priority"    validate:"required,oneof=1 2 3"`
	// Deadline is RFC 3339 or YYYY-MM-DD.
	Deadline string `json:"deadline" validate:"required"`
}

// SubmitTaskRequest defines the payload for submitting a task.
type SubmitTaskRequest struct {
	FileID      string     `json:"file_id"      validate:"required,max=512"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

// ScoreTaskRequest defines the payload for scoring a task. Omitting score
// keeps the score computed at submission.
type ScoreTaskRequest struct {
	Score *float64 `json:"score" validate:"omitempty,gte=-1,lte=1"`
}

// TaskResponse is a task with its derived status.
type TaskResponse = domain.TaskView

// TaskListResponse is one page of tasks.
type TaskListResponse = domain.TaskPage

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
