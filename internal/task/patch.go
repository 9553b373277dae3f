package task

import "strings"

// Patch is a partial user edit. Nil fields are left untouched.
//
// Status may be set by the surrounding application to reopen a task; the
// scheduler never writes through this path. A reopened task still carries
// its delivery marker and will not be re-sent unless ResetDelivery is set
// explicitly.
type Patch struct {
	Date        *string
	Time        *string
	Timezone    *string
	Title       *string
	Description *string
	Status      *Status

	ResetDelivery bool
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Date == nil && p.Time == nil && p.Timezone == nil &&
		p.Title == nil && p.Description == nil && p.Status == nil && !p.ResetDelivery
}

// Validate checks the fields the patch provides. Unset fields are fine.
func (p Patch) Validate() error {
	if p.Date != nil {
		if err := validateDate(*p.Date); err != nil {
			return err
		}
	}
	if p.Time != nil {
		if err := validateTime(*p.Time); err != nil {
			return err
		}
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if p.Status != nil && *p.Status != StatusPending && *p.Status != StatusDone {
		return &ValidationError{Field: "status", Reason: "must be pending or done"}
	}
	return nil
}

// Apply copies the provided fields onto t. ID and Owner are immutable and
// not representable here; the delivery marker only moves through
// ResetDelivery.
func (p Patch) Apply(t *Task) {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Time != nil {
		t.Time = *p.Time
	}
	if p.Timezone != nil {
		t.Timezone = strings.TrimSpace(*p.Timezone)
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.ResetDelivery {
		t.Delivered = ""
	}
}
