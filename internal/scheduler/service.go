package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/storage"
	"remindbot/internal/task"
	logx "remindbot/pkg/logx"
)

// Service is the scheduler loop plus the manual flush entry point.
//
// Sweeps (ticks and flushes) are serialized by sweepMu: a tick that would
// overlap a still-running sweep is skipped, a flush waits its turn. The
// store's own locking covers racing user mutations.
type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	store   storage.Store
	deliver Deliverer

	loc    *time.Location
	c      *cron.Cron
	stopCh chan struct{}

	sweepMu sync.Mutex

	// Per-task bookkeeping between ticks. Guarded by rmu, pruned against
	// each snapshot so deleted tasks don't leak entries.
	rmu       sync.Mutex
	retry     map[int64]*retryState
	tzFlagged map[int64]string
}

func New(cfg Config, store storage.Store, deliver Deliverer, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:       cfg.withDefaults(),
		log:       log,
		store:     store,
		deliver:   deliver,
		retry:     map[int64]*retryState{},
		tzFlagged: map[int64]string{},
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps config at runtime. Interval/timezone changes restart the
// cron entry; retry knobs take effect on the next failure.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	oldInterval := s.cfg.Interval
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	running := s.stopCh != nil
	s.mu.Unlock()

	if running && (oldInterval != cfg.Interval || oldTZ != strings.TrimSpace(cfg.Timezone)) {
		s.restart()
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return nil
	}
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}
	s.stopCh = make(chan struct{})

	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithLocation(loc))
	if err := s.addTickLocked(); err != nil {
		s.stopCh = nil
		s.c = nil
		return err
	}
	s.c.Start()
	s.log.Info("scheduler started",
		logx.Duration("interval", s.cfg.Interval), logx.String("tz", loc.String()))
	_ = ctx
	return nil
}

// Stop signals drain and waits for an in-flight tick to finish its current
// evaluation and commit, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			s.log.Warn("scheduler stop timed out with tick in flight")
			return
		}
	}
	s.log.Info("scheduler stopped")
}

func (s *Service) addTickLocked() error {
	spec := fmt.Sprintf("@every %s", s.cfg.Interval)
	_, err := s.c.AddFunc(spec, s.tick)
	return err
}

func (s *Service) restart() {
	s.mu.Lock()
	old := s.c
	s.c = nil
	s.mu.Unlock()

	// Wait for the old cron with s.mu released: the in-flight tick takes
	// s.mu itself (sweep config snapshot, timezone flagging), so holding
	// the lock across this wait would deadlock.
	if old != nil {
		<-old.Stop().Done()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		// Stopped while we were waiting; nothing to bring back up.
		return
	}
	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithLocation(loc))
	if err := s.addTickLocked(); err != nil {
		s.log.Error("scheduler restart failed", logx.Err(err))
		return
	}
	s.c.Start()
	s.log.Info("scheduler restarted",
		logx.Duration("interval", s.cfg.Interval), logx.String("tz", loc.String()))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid default timezone, falling back to Local",
			logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) tick() {
	// Skip if the previous sweep (tick or flush) is still running.
	if !s.sweepMu.TryLock() {
		s.log.Debug("tick skipped, sweep in flight")
		return
	}
	defer s.sweepMu.Unlock()

	stats := s.sweepLocked(context.Background(), "", false)
	if stats.Delivered > 0 || stats.Failed > 0 || stats.BadZone > 0 || stats.CommitErr {
		s.log.Info("tick",
			logx.Int("evaluated", stats.Evaluated), logx.Int("delivered", stats.Delivered),
			logx.Int("failed", stats.Failed), logx.Int("skipped", stats.Skipped),
			logx.Int("bad_zone", stats.BadZone), logx.Bool("commit_err", stats.CommitErr))
	}
}

// Tick runs one sweep synchronously. Exposed for the app's startup
// catch-up pass and for tests; production cadence comes from cron.
func (s *Service) Tick(ctx context.Context) TickStats {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	return s.sweepLocked(ctx, "", false)
}

// FlushPending immediately attempts delivery for every still-pending task,
// ignoring due times and retry backoff, optionally scoped to one owner.
// The delivery marker is honored exactly like in a tick. Returns the number
// of tasks delivered.
func (s *Service) FlushPending(ctx context.Context, owner string) (int, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	stats := s.sweepLocked(ctx, owner, true)
	if stats.CommitErr {
		return stats.Delivered, errors.New("flush delivered but commit failed; results retried next tick")
	}
	return stats.Delivered, nil
}

// sweepLocked is the shared tick/flush body: snapshot, evaluate, deliver,
// batch commit. Caller holds sweepMu.
func (s *Service) sweepLocked(ctx context.Context, owner string, manual bool) TickStats {
	s.mu.Lock()
	cfg := s.cfg
	loc := s.loc
	stopCh := s.stopCh
	s.mu.Unlock()
	if loc == nil {
		loc = time.Local
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stats := TickStats{SnapshotAt: time.Now()}

	snapshot, err := s.store.List(ctx, owner)
	if err != nil {
		// Abort the sweep; last known-good state stays untouched and the
		// next tick retries.
		s.log.Error("snapshot failed", logx.Err(err))
		stats.CommitErr = true
		return stats
	}
	// Prune only against a full snapshot: an owner-scoped flush must not
	// drop the retry and park bookkeeping of everyone else's tasks.
	if owner == "" {
		s.pruneState(snapshot)
	}

	now := time.Now()
	var results []task.Result

	for _, t := range snapshot {
		if stopped(ctx, stopCh) {
			// Drain requested: stop evaluating, commit what we have.
			break
		}
		stats.Evaluated++

		if manual {
			if t.Status != task.StatusPending || t.Delivered != "" {
				continue
			}
		} else {
			due, err := IsDue(t, now, loc)
			if err != nil {
				var tzErr *task.TimezoneError
				if errors.As(err, &tzErr) {
					stats.BadZone++
					s.flagTimezone(ctx, t, tzErr)
				} else {
					s.log.Error("due evaluation failed", logx.Int64("task", t.ID), logx.Err(err))
				}
				continue
			}
			if !due {
				continue
			}
			if !s.attemptAllowed(t.ID, now) {
				stats.Skipped++
				continue
			}
		}

		if err := s.deliver.Deliver(ctx, t.Owner, t.Render(manual)); err != nil {
			stats.Failed++
			s.log.Warn("delivery failed",
				logx.Int64("task", t.ID), logx.String("owner", t.Owner), logx.Err(err))
			s.noteFailure(ctx, t, now, cfg)
			continue
		}

		stats.Delivered++
		s.clearRetry(t.ID)
		results = append(results, task.Result{
			ID:     t.ID,
			Status: task.StatusDone,
			Marker: task.NewMarker(),
		})
	}

	if len(results) > 0 {
		// The commit must land even when the sweep ctx was canceled for
		// shutdown, so it runs on its own bounded context. A crash between
		// delivery and this write is the accepted at-least-once boundary.
		cctx, cancel := context.WithTimeout(context.Background(), cfg.CommitTimeout)
		err := s.store.Commit(cctx, results)
		cancel()
		if err != nil {
			stats.CommitErr = true
			s.log.Error("commit failed, results retried next tick",
				logx.Int("count", len(results)), logx.Err(err))
			s.report(ctx, cfg, fmt.Sprintf("⚠️ task store write failed: %v", err))
		}
	}

	return stats
}

func stopped(ctx context.Context, stopCh <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}
	if stopCh == nil {
		return false
	}
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

// ---- per-task retry bookkeeping ----

func (s *Service) attemptAllowed(id int64, now time.Time) bool {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	rs := s.retry[id]
	if rs == nil {
		return true
	}
	if rs.parked {
		return false
	}
	return !now.Before(rs.nextTry)
}

func (s *Service) noteFailure(ctx context.Context, t task.Task, now time.Time, cfg Config) {
	s.rmu.Lock()
	rs := s.retry[t.ID]
	if rs == nil {
		rs = &retryState{}
		s.retry[t.ID] = rs
	}
	rs.attempts++
	park := rs.attempts >= cfg.RetryMax && !rs.parked
	if park {
		rs.parked = true
	} else {
		rs.nextTry = now.Add(backoff(cfg, rs.attempts))
	}
	attempts := rs.attempts
	s.rmu.Unlock()

	if park {
		s.log.Error("task parked after repeated delivery failures",
			logx.Int64("task", t.ID), logx.Int("attempts", attempts))
		s.report(ctx, cfg, fmt.Sprintf("🚨 task #%d (%s) parked after %d failed delivery attempts; it stays pending, edit it or run a manual flush", t.ID, t.Title, attempts))
	}
}

func (s *Service) clearRetry(id int64) {
	s.rmu.Lock()
	delete(s.retry, id)
	s.rmu.Unlock()
}

// flagTimezone surfaces an unresolvable zone once per task (re-armed when
// the zone string changes); the skip itself is logged every tick.
func (s *Service) flagTimezone(ctx context.Context, t task.Task, tzErr *task.TimezoneError) {
	s.log.Warn("task skipped: unresolvable timezone",
		logx.Int64("task", t.ID), logx.String("tz", tzErr.Zone))

	s.rmu.Lock()
	seen := s.tzFlagged[t.ID]
	if seen == tzErr.Zone {
		s.rmu.Unlock()
		return
	}
	s.tzFlagged[t.ID] = tzErr.Zone
	s.rmu.Unlock()

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	s.report(ctx, cfg, fmt.Sprintf("⚠️ task #%d (%s) has unresolvable timezone %q and is excluded from delivery until fixed", t.ID, t.Title, tzErr.Zone))
}

// pruneState drops bookkeeping for tasks no longer in the store.
func (s *Service) pruneState(snapshot []task.Task) {
	alive := make(map[int64]struct{}, len(snapshot))
	for _, t := range snapshot {
		alive[t.ID] = struct{}{}
	}
	s.rmu.Lock()
	for id := range s.retry {
		if _, ok := alive[id]; !ok {
			delete(s.retry, id)
		}
	}
	for id := range s.tzFlagged {
		if _, ok := alive[id]; !ok {
			delete(s.tzFlagged, id)
		}
	}
	s.rmu.Unlock()
}

func (s *Service) report(ctx context.Context, cfg Config, text string) {
	dest := strings.TrimSpace(cfg.OpsDestination)
	if dest == "" || s.deliver == nil {
		return
	}
	if err := s.deliver.Deliver(ctx, dest, text); err != nil {
		s.log.Warn("operator report failed", logx.Err(err))
	}
}

func backoff(cfg Config, attempts int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			return cfg.RetryMaxDelay
		}
	}
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}
