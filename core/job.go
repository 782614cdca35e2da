package core

import (
	"context"

	"github.com/google/uuid"
)

// Job is the unit of work submitted to a SingleFlightWorker (Closure).
type Job func(ctx context.Context)

// Continuation resumes a task on a specific side.
type Continuation func()

// TaskID identifies one task invocation.
type TaskID uuid.UUID

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New())
}

func (id TaskID) String() string {
	return uuid.UUID(id).String()
}

// =============================================================================
// Context Helper
// =============================================================================
type workerKeyType struct{}

var workerKey workerKeyType

// GetCurrentWorker returns the worker executing the job that owns ctx, or nil.
func GetCurrentWorker(ctx context.Context) *SingleFlightWorker {
	if v := ctx.Value(workerKey); v != nil {
		return v.(*SingleFlightWorker)
	}
	return nil
}
