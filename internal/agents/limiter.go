package agents

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiters holds one call-rate limiter per role, shared by every run in the process.
type Limiters struct {
	byRole map[Role]*rate.Limiter
}

// NewLimiters sizes a limiter from each spec's MaxCallsPerMinute. Calls are
// spaced evenly with no burst, so no 60s window admits more than the ceiling.
// A role with no ceiling is unlimited.
func NewLimiters(roster Roster) *Limiters {
	l := &Limiters{byRole: make(map[Role]*rate.Limiter, len(roster))}
	for role, spec := range roster {
		if spec.MaxCallsPerMinute <= 0 {
			l.byRole[role] = rate.NewLimiter(rate.Inf, 1)
			continue
		}
		l.byRole[role] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(spec.MaxCallsPerMinute)), 1)
	}
	return l
}

// Reserve books the next call slot for role as of now and returns how long
// the caller must wait before using it.
func (l *Limiters) Reserve(role Role, now time.Time) time.Duration {
	r := l.reserve(role, now)
	if r == nil {
		return 0
	}
	return r.DelayFrom(now)
}

// Wait blocks until role may make another call or ctx is done. A call that
// gives up returns its slot.
func (l *Limiters) Wait(ctx context.Context, role Role) error {
	now := time.Now()
	r := l.reserve(role, now)
	if r == nil {
		return nil
	}

	delay := r.DelayFrom(now)
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.CancelAt(time.Now())
		return fmt.Errorf("rate limit %s: %w", role, ctx.Err())
	}
}

func (l *Limiters) reserve(role Role, now time.Time) *rate.Reservation {
	if l == nil {
		return nil
	}
	lim, ok := l.byRole[role]
	if !ok {
		return nil
	}
	return lim.ReserveN(now, 1)
}
