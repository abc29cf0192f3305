package indexer

import (
	"sync"
	"time"
)

// IndexLock rejects overlapping builds of the same index without blocking.
// It remembers which source is being built so status reports can show it.
type IndexLock struct {
	mu      sync.Mutex
	source  string
	started time.Time
	held    bool
}

// TryAcquire claims the lock for a build of source. It returns false when
// another build already holds it.
func (l *IndexLock) TryAcquire(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false
	}
	l.held = true
	l.source = source
	l.started = time.Now()
	return true
}

// Release ends the current build
func (l *IndexLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.source = ""
	l.started = time.Time{}
}

// Held reports whether a build is in progress
func (l *IndexLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Current returns the source under construction and when its build began
func (l *IndexLock) Current() (source string, since time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source, l.started, l.held
}
