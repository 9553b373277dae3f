// Package task defines the reminder entity shared by the store, the
// scheduler and the command surface.
package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status of a reminder. The scheduler only ever moves pending -> done.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Task is a one-shot reminder.
//
// Date and Time are the user's local wall clock; Timezone (IANA name) says
// where that wall clock is. An empty Timezone falls back to the scheduler's
// default zone at evaluation time.
//
// Delivered is a one-time marker token set when a notification was actually
// handed to the transport. It is the source of truth for "already sent":
// even if Status is inconsistently still pending after a crash, a non-empty
// marker keeps the task from being delivered again.
type Task struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Timezone    string `json:"timezone,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Status      Status `json:"status"`
	Delivered   string `json:"delivered_marker,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewMarker returns a fresh delivery marker token.
func NewMarker() string { return uuid.NewString() }

// Validate checks the fields a caller must supply on create.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Owner) == "" {
		return &ValidationError{Field: "owner", Reason: "required"}
	}
	if strings.TrimSpace(t.Title) == "" {
		return &ValidationError{Field: "title", Reason: "required"}
	}
	if strings.TrimSpace(t.Description) == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	if err := validateDate(t.Date); err != nil {
		return err
	}
	if err := validateTime(t.Time); err != nil {
		return err
	}
	return nil
}

func validateDate(s string) error {
	if strings.TrimSpace(s) == "" {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return &ValidationError{Field: "date", Reason: fmt.Sprintf("want %s", DateLayout)}
	}
	return nil
}

func validateTime(s string) error {
	if strings.TrimSpace(s) == "" {
		return &ValidationError{Field: "time", Reason: "required"}
	}
	if _, err := time.Parse(TimeLayout, s); err != nil {
		return &ValidationError{Field: "time", Reason: "want HH:MM (24h)"}
	}
	return nil
}

// DueAt resolves Date+Time in the task's timezone to an absolute instant.
// def is used when the task carries no timezone of its own.
// An unresolvable zone name returns a *TimezoneError.
func (t Task) DueAt(def *time.Location) (time.Time, error) {
	loc := def
	if tz := strings.TrimSpace(t.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, &TimezoneError{TaskID: t.ID, Zone: tz, Err: err}
		}
		loc = l
	}
	if loc == nil {
		loc = time.Local
	}
	at, err := time.ParseInLocation(DateLayout+" "+TimeLayout, t.Date+" "+t.Time, loc)
	if err != nil {
		// Date/Time are validated on create; reaching this means the stored
		// record was edited out-of-band.
		return time.Time{}, &ValidationError{Field: "date/time", Reason: err.Error()}
	}
	return at, nil
}

// Render builds the notification text for this task.
// Manual flushes are labeled differently so the recipient can tell a
// scheduled reminder from an operator-triggered one.
func (t Task) Render(manual bool) string {
	kind := "Task Reminder"
	if manual {
		kind = "Task Manual"
	}
	return fmt.Sprintf("📝 *%s: %s*\n%s\nTanggal: %s %s", kind, t.Title, t.Description, t.Date, t.Time)
}

// Result is the scheduler's write-back for one task: only the fields the
// scheduler owns. The store must not touch anything else when committing.
type Result struct {
	ID     int64
	Status Status
	Marker string
}
