package driver

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultTickLength = time.Second * 2
)

// Manager is one stage of the per-tick pipeline.
type Manager interface {
	Tick(context.Context) error
}

// Scheduler owns the monotonic tick counter and runs the ordered stage
// pipeline. Stage order is fixed at wiring time: combat rounds resolve
// before regeneration, and population maintenance runs before session
// bookkeeping, so mobility can never move an NPC out from under a round
// already being resolved.
//
// A single mutex serializes ticks and Sync callbacks: no two ticks, and
// no tick and an out-of-band command, ever mutate shared state at once.
// The counter itself is atomic so it stays readable from inside a Sync
// callback, where the mutex is already held.
type Scheduler struct {
	tickLength time.Duration
	managers   []Manager
	tick       atomic.Uint64

	mu       sync.Mutex
	testMode bool
}

func NewScheduler(managers []Manager, opts ...SchedulerOpt) *Scheduler {
	s := &Scheduler{
		tickLength: DefaultTickLength,
		managers:   managers,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SetManagers attaches the stage pipeline. Stages reference the
// scheduler themselves, so they cannot exist before it does; they are
// attached once during wiring, before Start.
func (s *Scheduler) SetManagers(managers []Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managers = managers
}

// Start runs the autonomous wall-clock tick loop until ctx is cancelled.
// While test mode is enabled the loop idles; disabling resumes from the
// current counter with no retroactive catch-up.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.tickLength)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.TestMode() {
				continue
			}
			err := s.Advance(ctx, 1)
			if err != nil {
				return err
			}
		}
	}
}

// Advance increases the tick counter by exactly n, running the full stage
// pipeline once per tick sequentially. Each individual tick sees a
// consistent, fully-resolved state before the next begins.
func (s *Scheduler) Advance(ctx context.Context, n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for range n {
		tick := s.tick.Add(1)
		for _, m := range s.managers {
			if err := m.Tick(ctx); err != nil {
				// A failed stage is scoped to that stage; the tick
				// itself stands and the remaining stages still run.
				slog.ErrorContext(ctx, "tick stage failed", "tick", tick, "error", err)
			}
		}
	}
	return nil
}

// TickCount returns the current tick counter. Safe to call from inside
// a Sync callback.
func (s *Scheduler) TickCount() uint64 {
	return s.tick.Load()
}

// SetTestMode toggles autonomous wall-clock progression. Enabling pauses
// the clock; ticks then progress only through explicit Advance calls.
func (s *Scheduler) SetTestMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testMode = enabled
}

// TestMode reports whether autonomous progression is paused.
func (s *Scheduler) TestMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.testMode
}

// SetTickCount overwrites the counter. Only the snapshot manager calls
// this, when restoring saved state. Safe to call from inside a Sync
// callback.
func (s *Scheduler) SetTickCount(tick uint64) {
	s.tick.Store(tick)
}

// Sync runs fn under the same mutex the tick pipeline holds, so mutating
// command handlers never interleave with a tick in progress.
func (s *Scheduler) Sync(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}
