package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNotStarted is returned when jobs are submitted before Start.
var ErrNotStarted = errors.New("dispatcher not started")

// Config holds configuration for the dispatcher
type Config struct {
	// WorkerCount determines how many concurrent workers execute jobs.
	// If zero or negative, defaults to 1
	WorkerCount int

	// QueueSize determines the buffer size of the job queue
	QueueSize int
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		WorkerCount: 4,
		QueueSize:   256,
	}
}

// Dispatcher runs jobs on a fixed pool of workers fed by a bounded queue.
// Every submission returns a Pending that resolves when the job finishes.
type Dispatcher struct {
	queue       *Queue
	workerCount int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *slog.Logger

	mu         sync.RWMutex
	started    bool
	errHandler func(job Job, err error)
}

// New creates a dispatcher. Workers do not run until Start.
func New(cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dispatcher")

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", cfg.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		queue:       NewQueue(cfg.QueueSize, logger),
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		errHandler: func(job Job, err error) {
			logger.Error("job execution failed",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler replaces the handler called for every failed job.
func (d *Dispatcher) SetErrorHandler(handler func(job Job, err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errHandler = handler
}

// Start launches the workers. Calling Start twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("dispatcher started", "worker_count", d.workerCount)
}

// Submit enqueues job, waiting for queue space until ctx is done.
func (d *Dispatcher) Submit(ctx context.Context, job Job) (*Pending, error) {
	if err := d.checkStarted(); err != nil {
		return nil, err
	}
	env := envelope{job: job, pending: newPending(job.ID())}
	if err := d.queue.Enqueue(ctx, env); err != nil {
		return nil, err
	}
	return env.pending, nil
}

// TrySubmit enqueues job without blocking and fails with ErrQueueFull when
// the queue has no room.
func (d *Dispatcher) TrySubmit(job Job) (*Pending, error) {
	if err := d.checkStarted(); err != nil {
		return nil, err
	}
	env := envelope{job: job, pending: newPending(job.ID())}
	if err := d.queue.TryEnqueue(env); err != nil {
		return nil, err
	}
	return env.pending, nil
}

func (d *Dispatcher) checkStarted() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.started {
		return ErrNotStarted
	}
	return nil
}

// Stop closes the queue and waits for the workers to finish the jobs already
// queued. If ctx expires first, running jobs see their context cancelled and
// Stop returns ctx.Err().
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.queue.Close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	d.logger.Debug("starting worker", "worker_id", id)
	for env := range d.queue.channel() {
		d.process(env, id)
	}
	d.logger.Debug("queue drained, stopping worker", "worker_id", id)
}

func (d *Dispatcher) process(env envelope, workerID int) {
	start := time.Now()
	err := d.execute(env.job)
	env.pending.resolve(err)

	logger := d.logger.With(
		"job_id", env.job.ID(),
		"job_type", env.job.Type(),
		"worker_id", workerID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		d.mu.RLock()
		handler := d.errHandler
		d.mu.RUnlock()
		if handler != nil {
			handler(env.job, err)
		}
		return
	}
	logger.Debug("job completed")
}

func (d *Dispatcher) execute(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Execute(d.ctx)
}
