package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/events"
	"github.com/phrazzld/tasktrack-api/internal/platform/clock"
	"github.com/phrazzld/tasktrack-api/internal/platform/logger"
	"github.com/phrazzld/tasktrack-api/internal/store"
	"golang.org/x/sync/singleflight"
)

// Default listing limits
const (
	DefaultPageLimit = 15
	MaxPageLimit     = 100
)

// CreateTaskInput carries the caller-supplied fields of a new task. Deadline
// is an RFC 3339 instant or a YYYY-MM-DD date, which means local midnight.
type CreateTaskInput struct {
	Title       string
	Description string
	AssigneeID  int64
	AssignerID  int64
	Priority    domain.Priority
	Deadline    string
}

// TaskService provides task lifecycle operations
type TaskService interface {
	// CreateTask stores a new Pending task and notifies the assignee.
	CreateTask(ctx context.Context, in CreateTaskInput) (*domain.Task, error)

	// GetTask returns the task annotated with its effective status.
	GetTask(ctx context.Context, id int64) (*domain.TaskView, error)

	// SubmitTask records a submission on a Pending task. A nil submittedAt
	// means now. The submission score is computed once here.
	SubmitTask(ctx context.Context, id int64, submittedAt *time.Time, fileID string) (*domain.Task, error)

	// ScoreTask completes a Submitted task. A nil score keeps the score
	// computed at submission.
	ScoreTask(ctx context.Context, id int64, score *float64) (*domain.Task, error)

	// DeleteTask removes a task that is not Completed.
	DeleteTask(ctx context.Context, id int64) error

	// ListTasks returns one page of the filtered tasks in display order.
	ListTasks(ctx context.Context, filter store.TaskFilter, page, limit int) (*domain.TaskPage, error)

	// UserStatistics aggregates the tasks assigned to userID.
	UserStatistics(ctx context.Context, userID int64) (*domain.UserStats, error)
}

// Deps are the collaborators of the task service.
type Deps struct {
	Tasks  store.TaskStore
	Events events.EventEmitter
	Stats  StatsCache
	Clock  clock.Clock
}

// Options tunes calendar and listing behavior.
type Options struct {
	// Location is where date-only deadlines and scoring days are evaluated.
	Location         *time.Location
	DefaultPageLimit int
	MaxPageLimit     int
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks        store.TaskStore
	events       events.EventEmitter
	stats        StatsCache
	clock        clock.Clock
	loc          *time.Location
	defaultLimit int
	maxLimit     int
	group        singleflight.Group
	gens         *generations
	logger       *slog.Logger
}

var _ TaskService = (*taskServiceImpl)(nil)

// NewTaskService creates a new TaskService
// It returns an error if the task store is nil.
func NewTaskService(deps Deps, opts Options, logger *slog.Logger) (TaskService, error) {
	if deps.Tasks == nil {
		return nil, domain.NewValidationError("tasks", "cannot be nil", domain.ErrValidation)
	}

	if logger == nil {
		logger = slog.Default()
	}
	if deps.Stats == nil {
		deps.Stats = NopStatsCache{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.DefaultPageLimit <= 0 {
		opts.DefaultPageLimit = DefaultPageLimit
	}
	if opts.MaxPageLimit < opts.DefaultPageLimit {
		opts.MaxPageLimit = max(MaxPageLimit, opts.DefaultPageLimit)
	}

	return &taskServiceImpl{
		tasks:        deps.Tasks,
		events:       deps.Events,
		stats:        deps.Stats,
		clock:        deps.Clock,
		loc:          opts.Location,
		defaultLimit: opts.DefaultPageLimit,
		maxLimit:     opts.MaxPageLimit,
		gens:         newGenerations(),
		logger:       logger.With(slog.String("component", "task_service")),
	}, nil
}

// CreateTask implements TaskService.CreateTask
func (s *taskServiceImpl) CreateTask(ctx context.Context, in CreateTaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	deadline, err := domain.ParseDeadline(in.Deadline, s.loc)
	if err != nil {
		log.Debug("rejected task deadline", slog.String("deadline", in.Deadline))
		return nil, NewTaskServiceError("create_task", "invalid deadline", err)
	}

	task, err := domain.NewTask(in.Title, in.Description, in.AssigneeID, in.AssignerID, in.Priority, deadline, s.clock.Now())
	if err != nil {
		log.Debug("rejected task input", slog.String("error", err.Error()))
		return nil, NewTaskServiceError("create_task", "invalid task", err)
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		log.Error("failed to create task", slog.String("error", err.Error()))
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	log.Info("task created",
		slog.Int64("task_id", task.ID),
		slog.Int64("assignee_id", task.AssigneeID),
		slog.Int64("assigner_id", task.AssignerID))

	s.invalidateStats(ctx, task.AssigneeID)
	s.emit(ctx, events.TypeTaskAssigned, task)
	return task, nil
}

// GetTask implements TaskService.GetTask
func (s *taskServiceImpl) GetTask(ctx context.Context, id int64) (*domain.TaskView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Debug("task not found", slog.Int64("task_id", id))
			return nil, NewTaskServiceError("get_task", "task not found", store.ErrTaskNotFound)
		}
		log.Error("failed to retrieve task",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		return nil, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}

	view := domain.NewTaskView(task, s.clock.Now())
	return &view, nil
}

// SubmitTask implements TaskService.SubmitTask
func (s *taskServiceImpl) SubmitTask(ctx context.Context, id int64, submittedAt *time.Time, fileID string) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	at := s.clock.Now()
	if submittedAt != nil {
		at = *submittedAt
	}

	task, err := s.tasks.Update(ctx, id, func(t *domain.Task) error {
		return t.Submit(fileID, at, s.loc)
	})
	if err != nil {
		return nil, s.mutationError(log, "submit_task", id, err)
	}

	log.Info("task submitted",
		slog.Int64("task_id", task.ID),
		slog.Int("submission_score", *task.SubmissionScore))

	s.invalidateStats(ctx, task.AssigneeID)
	s.emit(ctx, events.TypeTaskSubmitted, task)
	return task, nil
}

// ScoreTask implements TaskService.ScoreTask
func (s *taskServiceImpl) ScoreTask(ctx context.Context, id int64, score *float64) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.tasks.Update(ctx, id, func(t *domain.Task) error {
		return t.Complete(score)
	})
	if err != nil {
		return nil, s.mutationError(log, "score_task", id, err)
	}

	log.Info("task scored",
		slog.Int64("task_id", task.ID),
		slog.Float64("score", *task.Score))

	s.invalidateStats(ctx, task.AssigneeID)
	s.emit(ctx, events.TypeTaskScored, task)
	return task, nil
}

// DeleteTask implements TaskService.DeleteTask
func (s *taskServiceImpl) DeleteTask(ctx context.Context, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.tasks.Delete(ctx, id, (*domain.Task).CheckDeletable)
	if err != nil {
		return s.mutationError(log, "delete_task", id, err)
	}

	log.Info("task deleted", slog.Int64("task_id", task.ID))

	s.invalidateStats(ctx, task.AssigneeID)
	s.emit(ctx, events.TypeTaskDeleted, task)
	return nil
}

// ListTasks implements TaskService.ListTasks
func (s *taskServiceImpl) ListTasks(ctx context.Context, filter store.TaskFilter, page, limit int) (*domain.TaskPage, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}

	result := domain.SortAndPaginate(tasks, s.clock.Now(), page, s.clampLimit(limit))
	return &result, nil
}

func (s *taskServiceImpl) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return s.defaultLimit
	case limit > s.maxLimit:
		return s.maxLimit
	default:
		return limit
	}
}

// UserStatistics implements TaskService.UserStatistics
func (s *taskServiceImpl) UserStatistics(ctx context.Context, userID int64) (*domain.UserStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if userID <= 0 {
		return nil, NewTaskServiceError("user_statistics", "invalid user",
			domain.NewValidationError("user_id", "must be positive", domain.ErrInvalidID))
	}

	cached, ok, err := s.stats.Get(ctx, userID)
	if err != nil {
		log.Warn("stats cache read failed", slog.Int64("user_id", userID), slog.String("error", err.Error()))
	} else if ok {
		log.Debug("stats cache hit", slog.Int64("user_id", userID))
		return cached, nil
	}

	v, err, shared := s.group.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		gen := s.gens.current(userID)

		tasks, err := s.tasks.List(ctx, store.TaskFilter{AssigneeID: userID})
		if err != nil {
			return nil, err
		}
		stats := domain.ComputeUserStats(userID, tasks)

		s.cacheStats(ctx, stats, gen)
		return stats, nil
	})
	if err != nil {
		log.Error("failed to compute user statistics",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()))
		return nil, NewTaskServiceError("user_statistics", "failed to load tasks", err)
	}

	stats := v.(domain.UserStats)
	log.Debug("stats computed", slog.Int64("user_id", userID), slog.Bool("shared", shared))
	return &stats, nil
}

// cacheStats writes stats computed under generation gen. A mutation that
// lands while the write is in flight bumps the generation, so the entry is
// dropped again after the write.
func (s *taskServiceImpl) cacheStats(ctx context.Context, stats domain.UserStats, gen uint64) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if s.gens.current(stats.UserID) != gen {
		return
	}
	if err := s.stats.Set(ctx, stats); err != nil {
		log.Warn("stats cache write failed", slog.Int64("user_id", stats.UserID), slog.String("error", err.Error()))
		return
	}
	if s.gens.current(stats.UserID) != gen {
		log.Debug("stats changed during cache write", slog.Int64("user_id", stats.UserID))
		if err := s.stats.Invalidate(ctx, stats.UserID); err != nil {
			log.Warn("stats cache invalidation failed",
				slog.Int64("user_id", stats.UserID),
				slog.String("error", err.Error()))
		}
	}
}

func (s *taskServiceImpl) invalidateStats(ctx context.Context, userID int64) {
	s.gens.bump(userID)
	if err := s.stats.Invalidate(ctx, userID); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("stats cache invalidation failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()))
	}
}

// emit publishes a lifecycle event. Failures are logged and never returned.
func (s *taskServiceImpl) emit(ctx context.Context, eventType string, task *domain.Task) {
	if s.events == nil {
		return
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	event, err := events.NewTaskEvent(eventType, task, nil, s.clock.Now())
	if err != nil {
		log.Error("failed to build event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
		return
	}

	if err := s.events.EmitEvent(ctx, event); err != nil {
		log.Warn("event delivery failed",
			slog.String("event_type", eventType),
			slog.Int64("task_id", task.ID),
			slog.String("error", err.Error()))
	}
}

func (s *taskServiceImpl) mutationError(log *slog.Logger, op string, id int64, err error) error {
	if store.IsNotFoundError(err) {
		log.Debug("task not found", slog.String("operation", op), slog.Int64("task_id", id))
		return NewTaskServiceError(op, "task not found", store.ErrTaskNotFound)
	}
	if isDomainError(err) {
		log.Debug("task change rejected",
			slog.String("operation", op),
			slog.Int64("task_id", id),
			slog.String("error", err.Error()))
		return NewTaskServiceError(op, "change rejected", err)
	}
	log.Error("task change failed",
		slog.String("operation", op),
		slog.Int64("task_id", id),
		slog.String("error", err.Error()))
	return NewTaskServiceError(op, "failed to update task", err)
}

func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrInvalidTransition)
}
