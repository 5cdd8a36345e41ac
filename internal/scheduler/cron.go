package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// EntryID identifies a scheduled function.
type EntryID = cron.EntryID

// Scheduler runs functions on cron specs.
type Scheduler interface {
	// Schedule registers fn to run on spec (standard five-field syntax or
	// descriptors such as @hourly).
	Schedule(spec string, fn func()) (EntryID, error)

	// Start begins firing scheduled functions.
	Start()

	// Stop halts future firings. The returned context is done once running
	// functions have returned.
	Stop() context.Context

	// Next returns the next activation time of id, or the zero time.
	Next(id EntryID) time.Time
}

// CronScheduler is the robfig/cron implementation of Scheduler. Overlapping
// runs of the same entry are skipped and panics are recovered and logged.
type CronScheduler struct {
	cron *cron.Cron
}

var _ Scheduler = (*CronScheduler)(nil)

// NewCronScheduler creates a scheduler evaluating specs in loc.
func NewCronScheduler(loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{logger: logger.With("component", "cron")}
	return &CronScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Schedule implements Scheduler.
func (s *CronScheduler) Schedule(spec string, fn func()) (EntryID, error) {
	return s.cron.AddFunc(spec, fn)
}

// Start implements Scheduler.
func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop implements Scheduler.
func (s *CronScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next implements Scheduler.
func (s *CronScheduler) Next(id EntryID) time.Time {
	return s.cron.Entry(id).Next
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// ManualScheduler records scheduled functions and runs them only when Fire is
// called. It lets tests drive ticks deterministically.
type ManualScheduler struct {
	mu      sync.Mutex
	nextID  EntryID
	entries map[EntryID]manualEntry
	started bool
	stopped bool
}

type manualEntry struct {
	spec string
	fn   func()
}

var _ Scheduler = (*ManualScheduler)(nil)

// NewManualScheduler creates an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{entries: make(map[EntryID]manualEntry)}
}

// Schedule validates spec and records fn.
func (m *ManualScheduler) Schedule(spec string, fn func()) (EntryID, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.entries[m.nextID] = manualEntry{spec: spec, fn: fn}
	return m.nextID, nil
}

// Start implements Scheduler.
func (m *ManualScheduler) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
}

// Stop implements Scheduler.
func (m *ManualScheduler) Stop() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// Next always reports the zero time.
func (m *ManualScheduler) Next(EntryID) time.Time {
	return time.Time{}
}

// Specs returns the registered specs by entry.
func (m *ManualScheduler) Specs() map[EntryID]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[EntryID]string, len(m.entries))
	for id, e := range m.entries {
		out[id] = e.spec
	}
	return out
}

// Fire runs entry id synchronously if the scheduler is started and not
// stopped. It reports whether the function ran.
func (m *ManualScheduler) Fire(id EntryID) bool {
	m.mu.Lock()
	e, ok := m.entries[id]
	runnable := ok && m.started && !m.stopped
	m.mu.Unlock()

	if !runnable {
		return false
	}
	e.fn()
	return true
}
