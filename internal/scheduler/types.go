package scheduler

import (
	"context"
	"time"
)

// Config controls the scheduler loop.
type Config struct {
	Enabled  bool
	Interval time.Duration // tick cadence; default 60s
	Timezone string        // IANA TZ used for tasks without their own zone, e.g. "Asia/Jakarta"

	// Per-task retry budget after failed deliveries. Backoff is exponential
	// between ticks; once RetryMax attempts are spent the task is parked
	// (still pending, excluded from automatic delivery, reported once).
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration

	// CommitTimeout bounds the store write-back so a hung store can't
	// deadlock the tick forever.
	CommitTimeout time.Duration

	// OpsDestination, if set, receives operator reports (unresolvable
	// timezones, parked tasks) through the same notifier path.
	OpsDestination string
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 10
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Minute
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 30 * time.Minute
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = 15 * time.Second
	}
	return c
}

// Deliverer is the slice of the notifier the loop needs.
type Deliverer interface {
	Deliver(ctx context.Context, destination, text string) error
}

// retryState tracks failed deliveries for one task between ticks.
type retryState struct {
	attempts int
	nextTry  time.Time
	parked   bool
}

// TickStats summarizes one sweep for logging and tests.
type TickStats struct {
	Evaluated  int
	Delivered  int
	Failed     int
	Skipped    int // backoff/parked
	BadZone    int
	CommitErr  bool
	SnapshotAt time.Time
}
