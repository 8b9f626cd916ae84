package client

import (
	"context"
	"sync"
)

type refreshResult struct {
	accessToken string
	err         error
}

// refreshCoordinator serialises access-token refreshes. At most one
// refresh call is in flight at any time; requests that hit a 401 while
// one is outstanding join a queue and share its outcome instead of
// starting refreshes of their own. Without this, N concurrently
// expiring requests would race N refresh calls against each other.
//
// The coordinator has two states. inFlight=false: the next caller
// starts a refresh. inFlight=true: callers are appended to waiters.
// The check and the transition happen under mu, so two callers can
// never both observe the idle state.
type refreshCoordinator struct {
	mu       sync.Mutex
	inFlight bool
	waiters  []chan refreshResult

	// refresh performs the actual token exchange and persists (or
	// tears down) the session. Exactly one invocation per expiry event.
	refresh func(ctx context.Context) (string, error)
}

// await returns the access token produced by the in-flight refresh,
// starting one if none is running. Queued waiters are resolved in
// arrival order once the refresh settles, success or failure.
func (rc *refreshCoordinator) await(ctx context.Context) (string, error) {
	rc.mu.Lock()
	if rc.inFlight {
		ready := make(chan refreshResult, 1)
		rc.waiters = append(rc.waiters, ready)
		rc.mu.Unlock()

		select {
		case res := <-ready:
			return res.accessToken, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	rc.inFlight = true
	rc.mu.Unlock()

	token, err := rc.refresh(ctx)

	rc.mu.Lock()
	waiters := rc.waiters
	rc.waiters = nil
	rc.inFlight = false
	rc.mu.Unlock()

	for _, ready := range waiters {
		ready <- refreshResult{accessToken: token, err: err}
	}
	return token, err
}
