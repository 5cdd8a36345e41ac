package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack-api/internal/dispatch"
	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/notify"
	"github.com/phrazzld/tasktrack-api/internal/platform/clock"
	"github.com/phrazzld/tasktrack-api/internal/store"
)

// Job names
const (
	JobDeadlineReminder = "deadline-reminder"
	JobOverdueSweep     = "overdue-sweep"
)

// Default cron specs
const (
	DefaultReminderCron = "0 9 * * *"
	DefaultOverdueCron  = "0 * * * *"
)

var (
	// ErrSweepInProgress is returned when a sweep is requested while the same
	// job is already running.
	ErrSweepInProgress = errors.New("sweep already in progress")

	// ErrSweepFailed wraps job-level failures such as a failed candidate
	// query. Nothing has been claimed or sent when it is returned.
	ErrSweepFailed = errors.New("sweep failed")

	// ErrAlreadyStarted is returned by Start on a second call.
	ErrAlreadyStarted = errors.New("scheduler already started")
)

// Outcome is the per-task result of a sweep.
type Outcome string

// Sweep outcomes
const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// TaskResult records what a sweep did with one candidate task.
type TaskResult struct {
	TaskID     int64   `json:"task_id"`
	AssigneeID int64   `json:"assignee_id"`
	Outcome    Outcome `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
}

// SweepResult summarizes one sweep run. Count is the number of candidate
// tasks examined.
type SweepResult struct {
	RunID      uuid.UUID    `json:"run_id"`
	Job        string       `json:"job"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Count      int          `json:"count"`
	Sent       int          `json:"sent"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Results    []TaskResult `json:"results"`
}

func (r *SweepResult) add(res TaskResult) {
	r.Results = append(r.Results, res)
	r.Count++
}

func (r *SweepResult) tally() {
	r.Sent, r.Failed, r.Skipped = 0, 0, 0
	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomeSent:
			r.Sent++
		case OutcomeFailed:
			r.Failed++
		case OutcomeSkipped:
			r.Skipped++
		}
	}
}

// JobStatus describes one periodic job.
type JobStatus struct {
	Name     string       `json:"name"`
	Schedule string       `json:"schedule"`
	Active   bool         `json:"active"`
	Running  bool         `json:"running"`
	Runs     int          `json:"runs"`
	NextRun  *time.Time   `json:"next_run,omitempty"`
	LastRun  *SweepResult `json:"last_run,omitempty"`
	LastErr  string       `json:"last_error,omitempty"`
}

// Status reports whether each periodic job is active, with details.
type Status struct {
	ReminderJob bool        `json:"reminder_job"`
	OverdueJob  bool        `json:"overdue_job"`
	Jobs        []JobStatus `json:"jobs"`
}

// Submitter queues a job, waiting for space until ctx is done.
type Submitter interface {
	Submit(ctx context.Context, job dispatch.Job) (*dispatch.Pending, error)
}

// Config holds the cron specs and calendar location of the engine.
type Config struct {
	Enabled      bool
	ReminderCron string
	OverdueCron  string
	Location     *time.Location
}

// Deps are the collaborators of the engine.
type Deps struct {
	Tasks     store.TaskStore
	Users     store.UserDirectory
	Notifier  notify.Notifier
	Jobs      Submitter
	Clock     clock.Clock
	Scheduler Scheduler
}

type job struct {
	name     string
	schedule string
	kind     notify.Kind
	lock     sync.Mutex

	// guarded by Engine.mu
	entry   EntryID
	running bool
	runs    int
	last    *SweepResult
	lastErr error
}

// Engine runs the deadline reminder and overdue sweeps, both on their cron
// schedules and on demand.
type Engine struct {
	tasks    store.TaskStore
	users    store.UserDirectory
	notifier notify.Notifier
	jobs     Submitter
	clock    clock.Clock
	sched    Scheduler
	loc      *time.Location
	enabled  bool
	logger   *slog.Logger

	mu       sync.Mutex
	started  bool
	stopped  bool
	reminder *job
	overdue  *job
}

// NewEngine creates an engine. A nil Scheduler defaults to a CronScheduler in
// cfg.Location and a nil Clock to the real clock.
func NewEngine(deps Deps, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	sched := deps.Scheduler
	if sched == nil {
		sched = NewCronScheduler(loc, logger)
	}
	reminderSpec := cfg.ReminderCron
	if reminderSpec == "" {
		reminderSpec = DefaultReminderCron
	}
	overdueSpec := cfg.OverdueCron
	if overdueSpec == "" {
		overdueSpec = DefaultOverdueCron
	}

	return &Engine{
		tasks:    deps.Tasks,
		users:    deps.Users,
		notifier: deps.Notifier,
		jobs:     deps.Jobs,
		clock:    clk,
		sched:    sched,
		loc:      loc,
		enabled:  cfg.Enabled,
		logger:   logger,
		reminder: &job{name: JobDeadlineReminder, schedule: reminderSpec, kind: notify.KindDeadlineReminder},
		overdue:  &job{name: JobOverdueSweep, schedule: overdueSpec, kind: notify.KindTaskOverdue},
	}
}

// Start registers both jobs and starts the scheduler. When the engine is
// disabled nothing is scheduled; manual runs still work.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}
	if !e.enabled {
		e.logger.Info("periodic sweeps disabled")
		e.started = true
		return nil
	}

	entries := []struct {
		job *job
		run func(context.Context) (*SweepResult, error)
	}{
		{e.reminder, e.RunReminderSweep},
		{e.overdue, e.RunOverdueSweep},
	}
	for _, entry := range entries {
		j, run := entry.job, entry.run
		id, err := e.sched.Schedule(j.schedule, func() { e.tick(j, run) })
		if err != nil {
			return fmt.Errorf("schedule %s (%q): %w", j.name, j.schedule, err)
		}
		j.entry = id
	}

	e.sched.Start()
	e.started = true
	e.logger.Info("scheduler started",
		"reminder_cron", e.reminder.schedule,
		"overdue_cron", e.overdue.schedule,
		"location", e.loc.String())
	return nil
}

func (e *Engine) tick(j *job, run func(context.Context) (*SweepResult, error)) {
	if _, err := run(context.Background()); err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			e.logger.Debug("tick skipped, sweep still running", "job", j.name)
			return
		}
		e.logger.Error("scheduled sweep failed", "job", j.name, "error", err)
	}
}

// Stop cancels future ticks and waits for running sweeps. It is idempotent.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	scheduled := e.started && e.enabled
	e.mu.Unlock()

	if scheduled {
		select {
		case <-e.sched.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan struct{})
	go func() {
		for _, j := range []*job{e.reminder, e.overdue} {
			j.lock.Lock()
			j.lock.Unlock() //nolint:staticcheck // waits for the running sweep
		}
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.logger.Info("scheduler stopped")
	return nil
}

// Status reports both jobs.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	active := e.started && e.enabled && !e.stopped
	jobs := make([]JobStatus, 0, 2)
	for _, j := range []*job{e.reminder, e.overdue} {
		st := JobStatus{
			Name:     j.name,
			Schedule: j.schedule,
			Active:   active,
			Running:  j.running,
			Runs:     j.runs,
			LastRun:  j.last,
		}
		if j.lastErr != nil {
			st.LastErr = j.lastErr.Error()
		}
		if active {
			if next := e.sched.Next(j.entry); !next.IsZero() {
				st.NextRun = &next
			}
		}
		jobs = append(jobs, st)
	}

	return Status{ReminderJob: active, OverdueJob: active, Jobs: jobs}
}

// ReminderWindow returns the inclusive deadline window of a reminder sweep
// run at now: from the start of today to the end of tomorrow in loc.
func ReminderWindow(now time.Time, loc *time.Location) (from, to time.Time) {
	from = domain.StartOfDay(now, loc)
	to = domain.EndOfDay(from.AddDate(0, 0, 1), loc)
	return from, to
}

// RunReminderSweep notifies assignees of Pending tasks due today or tomorrow
// and marks each reminded task so it is never reminded again.
func (e *Engine) RunReminderSweep(ctx context.Context) (*SweepResult, error) {
	return e.sweep(ctx, e.reminder, func(ctx context.Context, now time.Time) ([]*domain.Task, error) {
		from, to := ReminderWindow(now, e.loc)
		return e.tasks.FindReminderCandidates(ctx, from, to)
	}, e.tasks.MarkReminderSent)
}

// RunOverdueSweep notifies assignees of Pending tasks past their deadline,
// once per task.
func (e *Engine) RunOverdueSweep(ctx context.Context) (*SweepResult, error) {
	return e.sweep(ctx, e.overdue, e.tasks.FindOverdueCandidates, e.tasks.MarkOverdueNotified)
}

type candidateFn func(ctx context.Context, now time.Time) ([]*domain.Task, error)

type claimFn func(ctx context.Context, id int64) (bool, error)

func (e *Engine) sweep(ctx context.Context, j *job, candidates candidateFn, claim claimFn) (*SweepResult, error) {
	if !j.lock.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer j.lock.Unlock()

	e.setRunning(j, true)
	defer e.setRunning(j, false)

	now := e.clock.Now()
	result := &SweepResult{
		RunID:     uuid.New(),
		Job:       j.name,
		StartedAt: now,
		Results:   []TaskResult{},
	}
	log := e.logger.With("job", j.name, "run_id", result.RunID)

	tasks, err := candidates(ctx, now)
	if err != nil {
		err = fmt.Errorf("%w: %s: load candidates: %w", ErrSweepFailed, j.name, err)
		log.Error("failed to load sweep candidates", "error", err)
		result.FinishedAt = e.clock.Now()
		e.record(j, result, err)
		return result, err
	}
	log.Debug("sweep candidates loaded", "count", len(tasks))

	var (
		batch  dispatch.Batch
		queued []int
	)
	for _, t := range tasks {
		res := TaskResult{TaskID: t.ID, AssigneeID: t.AssigneeID}
		tlog := log.With("task_id", t.ID, "assignee_id", t.AssigneeID)

		recipient, err := e.users.FindUser(ctx, t.AssigneeID)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				tlog.Warn("assignee not found, task skipped")
				res.Outcome, res.Reason = OutcomeSkipped, "assignee not found"
			} else {
				tlog.Error("failed to resolve assignee", "error", err)
				res.Outcome, res.Reason = OutcomeFailed, err.Error()
			}
			result.add(res)
			continue
		}

		claimed, err := claim(ctx, t.ID)
		if err != nil {
			tlog.Error("failed to claim notification flag", "error", err)
			res.Outcome, res.Reason = OutcomeFailed, err.Error()
			result.add(res)
			continue
		}
		if !claimed {
			tlog.Debug("notification already claimed")
			res.Outcome, res.Reason = OutcomeSkipped, "already notified"
			result.add(res)
			continue
		}

		msg := notify.Message{Kind: j.kind, Task: *t.Clone(), Recipient: *recipient}
		dj := dispatch.NewJob(string(j.kind), func(ctx context.Context) error {
			return e.notifier.Notify(ctx, msg)
		})
		p, err := e.jobs.Submit(ctx, dj)
		if err != nil {
			p = dispatch.Failed(dj.ID(), err)
		}
		batch.Add(p)

		res.Outcome = OutcomeSent
		result.add(res)
		queued = append(queued, len(result.Results)-1)
	}

	for i, err := range batch.Wait(ctx) {
		if err == nil {
			continue
		}
		res := &result.Results[queued[i]]
		res.Outcome, res.Reason = OutcomeFailed, err.Error()
		log.Error("notification delivery failed", "task_id", res.TaskID, "error", err)
	}

	result.FinishedAt = e.clock.Now()
	result.tally()
	e.record(j, result, nil)

	log.Info("sweep finished",
		"count", result.Count,
		"sent", result.Sent,
		"failed", result.Failed,
		"skipped", result.Skipped)
	return result, nil
}

func (e *Engine) setRunning(j *job, running bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j.running = running
}

func (e *Engine) record(j *job, result *SweepResult, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j.runs++
	j.last = result
	j.lastErr = err
}
