// Package scheduler runs the periodic due-evaluation loop.
//
// # Model
//
// Every tick (default 60s) the service snapshots the task store, asks IsDue
// about each task, delivers the due ones through the notifier and commits
// the resulting status/marker changes back to the store in one batch.
//
// Plain interval polling is deliberate: it self-heals from missed ticks and
// clock jumps, and a task that became due while the process was down simply
// fires on the first tick after recovery. There is no wake-on-due-time
// machinery.
//
// # Delivery guarantees
//
// Delivery is at-least-once across process crashes (a crash between send
// and commit can repeat a send) and at-most-once everywhere else: once a
// task's delivery marker is persisted, no tick and no manual flush will
// hand it to the notifier again, even if its status is inconsistent.
//
// # Failure handling
//
// A failed delivery leaves the task pending and schedules a per-task
// exponential backoff; after the attempt budget is exhausted the task is
// parked and reported to the operator channel once. Parked tasks stay
// pending so an edit or a manual flush can still deliver them.
package scheduler
