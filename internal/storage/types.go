package storage

import (
	"context"
	"fmt"
	"time"

	"remindbot/internal/task"
)

// Config configures storage.
//
// Driver values:
//   - "file":   JSON container file (default)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the single source of truth for tasks.
//
// Update and Delete report "no task with this id for this owner" as
// (false, nil): repeated retries of a delete are expected to be harmless,
// so a miss is not an error.
//
// Commit is the scheduler-only write-back path. It bypasses the owner check
// (the scheduler is a trusted internal actor) and touches nothing but
// status and the delivery marker; a marker already present is never
// overwritten.
type Store interface {
	Create(ctx context.Context, t task.Task) (task.Task, error)
	List(ctx context.Context, owner string) ([]task.Task, error)
	Update(ctx context.Context, id int64, owner string, p task.Patch) (bool, error)
	Delete(ctx context.Context, id int64, owner string) (bool, error)
	Commit(ctx context.Context, results []task.Result) error
	Close() error
}

// PersistenceError wraps a failed container read or write. The tick that
// hits one aborts without committing partial results and retries on the
// next interval.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
