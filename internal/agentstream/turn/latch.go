package turn

import "sync"

// CommitState is the lifecycle of one persistence target.
type CommitState int

const (
	CommitNotStarted CommitState = iota
	CommitInFlight
	CommitDone
)

func (s CommitState) String() string {
	switch s {
	case CommitInFlight:
		return "in-flight"
	case CommitDone:
		return "done"
	}
	return "not-started"
}

// CommitLatch guards persistence targets so each is written at most once:
// not-started -> in-flight -> done, or back to not-started when the write
// fails so a resend can try again.
type CommitLatch struct {
	mu     sync.Mutex
	states map[string]CommitState
}

// NewCommitLatch returns a latch with every target not started.
func NewCommitLatch() *CommitLatch {
	return &CommitLatch{states: map[string]CommitState{}}
}

// TryBegin moves key to in-flight and reports true only if it was not
// started.
func (l *CommitLatch) TryBegin(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.states[key] != CommitNotStarted {
		return false
	}
	l.states[key] = CommitInFlight
	return true
}

// Resolve ends an in-flight write: done on success, released on failure.
func (l *CommitLatch) Resolve(key string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.states[key] != CommitInFlight {
		return
	}
	if err != nil {
		delete(l.states, key)
		return
	}
	l.states[key] = CommitDone
}

// State returns the state of key.
func (l *CommitLatch) State(key string) CommitState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[key]
}
