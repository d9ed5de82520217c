// Package clock implements the two time disciplines a replica maintains:
// a mutex-guarded Lamport logical clock (spec.md §3, §4.2) and Christian's
// algorithm physical clock correction (spec.md §4.7).
package clock

import "sync"

// Lamport is a mutex-protected Lamport logical clock. Every read-then-write
// sequence happens under the same lock acquisition, so no caller can
// observe a torn update — the invariant spec.md §3 requires ("no operation
// may read-then-increment without holding the mutex across both").
type Lamport struct {
	mu    sync.Mutex
	value uint64
}

// Tick increments the clock by one and returns the new value. Used before
// emitting any message (spec.md §3: "before emitting any message M, LC ←
// LC+1 and LC is stamped into M.clock").
func (l *Lamport) Tick() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value++
	return l.value
}

// Observe folds an externally received clock value into the local clock:
// LC ← max(LC, received). Used on every inbound message (spec.md §3).
func (l *Lamport) Observe(received uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if received > l.value {
		l.value = received
	}
}

// Value returns the current clock value without mutating it.
func (l *Lamport) Value() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}
