package driver

import "time"

type SchedulerOpt func(*Scheduler)

func WithTickLength(tickLength time.Duration) SchedulerOpt {
	return func(s *Scheduler) {
		s.tickLength = tickLength
	}
}

// WithTestMode starts the scheduler with autonomous progression paused.
func WithTestMode(enabled bool) SchedulerOpt {
	return func(s *Scheduler) {
		s.testMode = enabled
	}
}
