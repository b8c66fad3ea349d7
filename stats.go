package tql

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// QueryStats is an Interceptor collecting execution statistics.
type QueryStats struct {
	// TotalQueries is the number of statements returning rows.
	TotalQueries atomic.Int64
	// TotalExecs is the number of other statements.
	TotalExecs atomic.Int64
	// TotalDuration is the time spent in the driver, in nanoseconds.
	TotalDuration atomic.Int64
	// SlowQueries is the number of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the number of failed statements.
	Errors atomic.Int64

	mu            sync.RWMutex
	slowThreshold time.Duration
	slowHook      SlowQueryHook
}

// SlowQueryHook is called for statements exceeding the slow threshold.
type SlowQueryHook func(ctx context.Context, info *StatementInfo)

// StatsOption configures QueryStats.
type StatsOption func(*QueryStats)

// WithStatsThreshold sets the duration above which a statement counts as
// slow. Default is 100ms.
func WithStatsThreshold(d time.Duration) StatsOption {
	return func(s *QueryStats) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *QueryStats) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow statements to the default logger.
func WithSlowQueryLog() StatsOption {
	return WithSlowQueryHook(func(ctx context.Context, info *StatementInfo) {
		slog.WarnContext(ctx, "slow query detected", "duration", info.Duration, "query", info.SQL, "args", argValues(info.Args))
	})
}

// NewQueryStats returns an empty statistics collector.
//
//	stats := tql.NewQueryStats(tql.WithStatsThreshold(200*time.Millisecond), tql.WithSlowQueryLog())
//	db, err := tql.Open(drv, tql.WithInterceptors(stats))
//	...
//	fmt.Println(stats.Stats())
func NewQueryStats(opts ...StatsOption) *QueryStats {
	s := &QueryStats{slowThreshold: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SlowThreshold returns the current slow statement threshold.
func (s *QueryStats) SlowThreshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slowThreshold
}

// SetSlowThreshold updates the slow statement threshold.
func (s *QueryStats) SetSlowThreshold(threshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slowThreshold = threshold
}

// BeforeExecute implements Interceptor.
func (*QueryStats) BeforeExecute(context.Context, *StatementInfo) {}

// AfterExecute implements Interceptor.
func (s *QueryStats) AfterExecute(ctx context.Context, info *StatementInfo, err error) {
	if info.Kind == KindSelect || info.Kind == KindExplain {
		s.TotalQueries.Add(1)
	} else {
		s.TotalExecs.Add(1)
	}
	s.TotalDuration.Add(int64(info.Duration))
	if err != nil {
		s.Errors.Add(1)
	}

	s.mu.RLock()
	threshold := s.slowThreshold
	hook := s.slowHook
	s.mu.RUnlock()

	if info.Duration > threshold {
		s.SlowQueries.Add(1)
		if hook != nil {
			hook(ctx, info)
		}
	}
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgQueryDuration returns the average statement duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

var _ Interceptor = (*QueryStats)(nil)
