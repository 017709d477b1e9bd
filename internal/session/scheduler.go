package session

import "sync"

// Scheduler is the host's cooperative lock. The caller holds it while
// running session code; the session releases it around every blocking
// transport call and reacquires it afterwards.
type Scheduler interface {
	Acquire()
	Release()
}

// NopScheduler is used by plain Go callers that hold no host lock.
type NopScheduler struct{}

func (NopScheduler) Acquire() {}
func (NopScheduler) Release() {}

// HostLock models a global interpreter lock shared by all sessions.
type HostLock struct {
	mu sync.Mutex
}

func (l *HostLock) Acquire() { l.mu.Lock() }
func (l *HostLock) Release() { l.mu.Unlock() }
