package client

import (
	"context"
	"sync"
	"time"
)

// rateLimiter bounds outbound issuance to at most max sends per
// rolling window. Callers over budget wait in FIFO order; nothing is
// ever dropped, only deferred. It applies uniformly to every request,
// public or private, first attempt or retry.
type rateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	sent   []time.Time     // send times still inside the window, oldest first
	queue  []chan struct{} // blocked callers, oldest first
	timer  *time.Timer
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{max: max, window: window}
}

// wait blocks until the caller may send. Admission order among blocked
// callers is the order they arrived.
func (l *rateLimiter) wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	l.prune(now)
	if len(l.queue) == 0 && len(l.sent) < l.max {
		l.sent = append(l.sent, now)
		l.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	l.queue = append(l.queue, ready)
	l.schedule(now)
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.abandon(ready)
		return ctx.Err()
	}
}

// prune drops send stamps that have aged out. Callers must hold mu.
func (l *rateLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	kept := l.sent[:0]
	for _, ts := range l.sent {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.sent = kept
}

// drain admits queued callers while budget remains, then re-arms the
// timer for the next slot to free up.
func (l *rateLimiter) drain() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.prune(now)
	for len(l.queue) > 0 && len(l.sent) < l.max {
		close(l.queue[0])
		l.queue = l.queue[1:]
		l.sent = append(l.sent, now)
	}
	if len(l.queue) > 0 {
		l.schedule(now)
	}
}

// schedule arms the drain timer for the moment the oldest in-window
// send ages out. Callers must hold mu.
func (l *rateLimiter) schedule(now time.Time) {
	var delay time.Duration
	if len(l.sent) > 0 {
		delay = l.sent[0].Add(l.window).Sub(now)
	}
	if delay < 0 {
		delay = 0
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(delay, l.drain)
}

// abandon removes a caller that gave up while queued, keeping the
// order of the callers behind it intact.
func (l *rateLimiter) abandon(ready chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, ch := range l.queue {
		if ch == ready {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}
}
