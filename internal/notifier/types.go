package notifier

import (
	"context"
	"fmt"
	"time"
)

// Adapter is the outbound transport capability supplied by the surrounding
// application (e.g. the Telegram adapter). The core never depends on the
// transport itself.
type Adapter interface {
	SendText(ctx context.Context, destination, text string) error
}

// Config controls delivery pacing and retries.
//
// All fields have safe defaults; see applyLocked.
type Config struct {
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration

	// SendTimeout bounds a single transport call so one slow destination
	// can't stall the scheduler tick.
	SendTimeout time.Duration
}

// DeliveryError reports a destination that could not be reached after all
// attempts. The task behind it stays pending and is re-evaluated on the
// next tick.
type DeliveryError struct {
	Destination string
	Attempts    int
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s failed after %d attempt(s): %v", e.Destination, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// HistoryItem is one delivered notification, kept in a bounded in-memory
// ring for operational visibility.
type HistoryItem struct {
	At          time.Time
	Destination string
	Text        string
}
