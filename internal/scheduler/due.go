package scheduler

import (
	"time"

	"remindbot/internal/task"
)

// IsDue decides whether t should be delivered at now.
//
// True iff the task is still pending, has never been delivered (marker
// unset) and its declared local date+time, resolved through its timezone,
// is at or before now. How far in the past the due instant lies makes no
// difference: an overdue task is simply due.
//
// def is the fallback zone for tasks without a timezone of their own. An
// unresolvable zone returns a *task.TimezoneError; the caller decides how
// to surface it.
func IsDue(t task.Task, now time.Time, def *time.Location) (bool, error) {
	if t.Status != task.StatusPending || t.Delivered != "" {
		return false, nil
	}
	at, err := t.DueAt(def)
	if err != nil {
		return false, err
	}
	return !now.Before(at), nil
}
