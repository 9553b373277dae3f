package task

import "fmt"

// ValidationError rejects a create (or a patch) with a bad or missing field.
// It is returned synchronously and nothing is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task: %s: %s", e.Field, e.Reason)
}

// TimezoneError marks a task whose declared zone cannot be resolved.
// The task is skipped for the tick and surfaced to an operator; it is
// never silently dropped.
type TimezoneError struct {
	TaskID int64
	Zone   string
	Err    error
}

func (e *TimezoneError) Error() string {
	return fmt.Sprintf("task %d: unresolvable timezone %q: %v", e.TaskID, e.Zone, e.Err)
}

func (e *TimezoneError) Unwrap() error { return e.Err }
