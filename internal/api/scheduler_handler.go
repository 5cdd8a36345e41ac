package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasktrack-api/internal/api/shared"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/scheduler"
)

// SchedulerControl is the part of the scheduler engine exposed over HTTP.
type SchedulerControl interface {
	Status() scheduler.Status
	RunReminderSweep(ctx context.Context) (*scheduler.SweepResult, error)
	RunOverdueSweep(ctx context.Context) (*scheduler.SweepResult, error)
	Stop(ctx context.Context) error
}

// SchedulerHandler serves the admin scheduler endpoints.
type SchedulerHandler struct {
	engine SchedulerControl
	logger *slog.Logger
}

// NewSchedulerHandler creates a new SchedulerHandler
func NewSchedulerHandler(engine SchedulerControl, logger *slog.Logger) *SchedulerHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for SchedulerHandler")
	}
	return &SchedulerHandler{
		engine: engine,
		logger: logger.With(slog.String("component", "scheduler_handler")),
	}
}

// Status handles GET /admin/scheduler requests.
func (h *SchedulerHandler) Status(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.engine.Status())
}

// RunReminders handles POST /admin/scheduler/reminders/run requests.
func (h *SchedulerHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, scheduler.JobDeadlineReminder, h.engine.RunReminderSweep)
}

// RunOverdue handles POST /admin/scheduler/overdue/run requests.
func (h *SchedulerHandler) RunOverdue(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, scheduler.JobOverdueSweep, h.engine.RunOverdueSweep)
}

func (h *SchedulerHandler) run(
	w http.ResponseWriter,
	r *http.Request,
	job string,
	sweep func(ctx context.Context) (*scheduler.SweepResult, error),
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	// The sweep outlives a client disconnect so that claimed flags are
	// always followed by their notifications.
	ctx := logger.WithLogger(context.WithoutCancel(r.Context()), log)

	result, err := sweep(ctx)
	if err != nil {
		HandleAPIError(w, r, err, "Sweep failed")
		return
	}

	log.Info("manual sweep finished",
		slog.String("job", job),
		slog.String("run_id", result.RunID.String()),
		slog.Int("count", result.Count))
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// Stop handles POST /admin/scheduler/stop requests.
func (h *SchedulerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Stop(r.Context()); err != nil {
		HandleAPIError(w, r, err, "Failed to stop scheduler")
		return
	}
	logger.FromContextOrDefault(r.Context(), h.logger).Info("scheduler stopped via API")
	shared.RespondWithJSON(w, r, http.StatusOK, h.engine.Status())
}
