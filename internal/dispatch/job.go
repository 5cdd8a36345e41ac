package dispatch

import (
	"context"

	"github.com/google/uuid"
)

// Job is a unit of background work, typically one notification delivery.
type Job interface {
	// ID returns the job's unique identifier
	ID() uuid.UUID

	// Type returns the job type identifier used in logs
	Type() string

	// Execute runs the job logic
	Execute(ctx context.Context) error
}

type funcJob struct {
	id      uuid.UUID
	jobType string
	fn      func(ctx context.Context) error
}

// NewJob wraps fn as a Job with a fresh ID.
func NewJob(jobType string, fn func(ctx context.Context) error) Job {
	return &funcJob{id: uuid.New(), jobType: jobType, fn: fn}
}

func (j *funcJob) ID() uuid.UUID                     { return j.id }
func (j *funcJob) Type() string                      { return j.jobType }
func (j *funcJob) Execute(ctx context.Context) error { return j.fn(ctx) }
