// Package ratelimit paces outbound exchange calls so that no more
// than a configured number occur in any trailing 60-second window.
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const window = time.Minute

// Limiter keeps a bounded queue of call timestamps and sleeps callers
// that would overflow the window. Safe for concurrent use, though the
// trading core drives it from a single goroutine.
type Limiter struct {
	mu             sync.Mutex
	callsPerMinute int
	calls          []time.Time

	now    func() time.Time
	sleep  func(time.Duration)
	logger *zap.SugaredLogger
}

// New returns a limiter allowing callsPerMinute calls in any trailing
// 60-second window.
func New(callsPerMinute int, logger *zap.SugaredLogger) *Limiter {
	return &Limiter{
		callsPerMinute: callsPerMinute,
		calls:          make([]time.Time, 0, callsPerMinute),
		now:            time.Now,
		sleep:          time.Sleep,
		logger:         logger,
	}
}

// WaitIfNeeded blocks only long enough to keep the trailing window at
// or under the ceiling, then records the call. It must run immediately
// before every outbound exchange call, cleanup included.
func (l *Limiter) WaitIfNeeded() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.calls) >= l.callsPerMinute {
		wait := window - now.Sub(l.calls[0])
		if wait > 0 {
			l.logger.Warnf("rate limit reached (%d calls/min), sleeping %.2fs", l.callsPerMinute, wait.Seconds())
			l.sleep(wait)
			now = l.now()
			l.prune(now)
		}
	}

	l.calls = append(l.calls, now)
}

// prune drops timestamps older than the window. Callers hold l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := 0
	for cutoff < len(l.calls) && now.Sub(l.calls[cutoff]) >= window {
		cutoff++
	}
	if cutoff > 0 {
		l.calls = append(l.calls[:0], l.calls[cutoff:]...)
	}
}
