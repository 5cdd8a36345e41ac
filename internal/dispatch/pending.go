package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Pending is the future result of a submitted job.
type Pending struct {
	jobID uuid.UUID
	done  chan struct{}
	once  sync.Once
	err   error
}

func newPending(jobID uuid.UUID) *Pending {
	return &Pending{jobID: jobID, done: make(chan struct{})}
}

// Failed returns an already resolved Pending carrying err. It lets callers
// treat a rejected submission like a failed delivery.
func Failed(jobID uuid.UUID, err error) *Pending {
	p := newPending(jobID)
	p.resolve(err)
	return p
}

func (p *Pending) resolve(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// JobID returns the ID of the job this result belongs to.
func (p *Pending) JobID() uuid.UUID {
	return p.jobID
}

// Done is closed once the job has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the job finishes or ctx is done.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Batch collects the results of jobs submitted together.
type Batch struct {
	mu    sync.Mutex
	items []*Pending
}

// Add registers p with the batch.
func (b *Batch) Add(p *Pending) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, p)
}

// Len returns how many results the batch holds.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Wait waits for every job and returns their errors in submission order.
// Entries for successful jobs are nil.
func (b *Batch) Wait(ctx context.Context) []error {
	b.mu.Lock()
	items := make([]*Pending, len(b.items))
	copy(items, b.items)
	b.mu.Unlock()

	errs := make([]error, len(items))
	for i, p := range items {
		errs[i] = p.Wait(ctx)
	}
	return errs
}

// Err waits for the batch and joins every failure.
func (b *Batch) Err(ctx context.Context) error {
	return errors.Join(b.Wait(ctx)...)
}
