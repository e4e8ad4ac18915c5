package service

import "sync"

// scopeLocks records which job holds each scope. A scope is held from Start
// until the job's terminal transition.
type scopeLocks struct {
	mu      sync.Mutex
	holders map[string]string
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{holders: map[string]string{}}
}

// tryAcquire claims scope for jobID. It fails if another job holds it.
func (l *scopeLocks) tryAcquire(scope, jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.holders[scope]; held {
		return false
	}
	l.holders[scope] = jobID
	return true
}

// release frees scope if jobID still holds it.
func (l *scopeLocks) release(scope, jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holders[scope] == jobID {
		delete(l.holders, scope)
	}
}

func (l *scopeLocks) holder(scope string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.holders[scope]
	return id, ok
}

func (l *scopeLocks) held() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]string, len(l.holders))
	for k, v := range l.holders {
		out[k] = v
	}
	return out
}
