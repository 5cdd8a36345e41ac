package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasktrack-api/internal/api/shared"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/service"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	tasks  service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(tasks service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		tasks:  tasks,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// CreateTask handles POST /tasks requests.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		AssignerID:  userID,
		Priority:    domain.Priority(req.Priority),
		Deadline:    req.Deadline,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create task")
		return
	}

	log.Debug("task created via API", slog.Int64("task_id", task.ID), slog.Int64("assigner_id", userID))
	view, err := h.tasks.GetTask(r.Context(), task.ID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, view)
}

// GetTask handles GET /tasks/{id} requests.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	view, err := h.tasks.GetTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}

// ListTasks handles GET /tasks requests. Query parameters: page, limit,
// assignee_id and assigner_id.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	page, err := getQueryInt(r, "page", 1)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	limit, err := getQueryInt(r, "limit", 0)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	assignee, err := getQueryID(r, "assignee_id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	assigner, err := getQueryID(r, "assigner_id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.tasks.ListTasks(r.Context(), store.TaskFilter{AssigneeID: assignee, AssignerID: assigner}, page, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// SubmitTask handles POST /tasks/{id}/submit requests.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	task, err := h.tasks.SubmitTask(r.Context(), id, req.SubmittedAt, req.FileID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit task")
		return
	}

	log.Debug("task submitted via API", slog.Int64("task_id", task.ID))
	h.respondWithView(w, r, task.ID)
}

// ScoreTask handles POST /tasks/{id}/score requests.
func (h *TaskHandler) ScoreTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req ScoreTaskRequest
	if err := shared.DecodeOptionalJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	task, err := h.tasks.ScoreTask(r.Context(), id, req.Score)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to score task")
		return
	}
	h.respondWithView(w, r, task.ID)
}

// DeleteTask handles DELETE /tasks/{id} requests.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.tasks.DeleteTask(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UserStats handles GET /users/{id}/stats requests.
func (h *TaskHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	userID, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	stats, err := h.tasks.UserStatistics(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute statistics")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

func (h *TaskHandler) respondWithView(w http.ResponseWriter, r *http.Request, id int64) {
	view, err := h.tasks.GetTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load task")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, view)
}
