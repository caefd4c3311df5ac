// Package issuelock serializes concurrent sync passes per issue.
//
// The engine itself is stateless per call, but two passes for the same
// issue interleaving their read-decide-write cycles could clobber each
// other. Callers take the issue's lock around each pass. Locks are
// in-process only; cross-process coordination is out of scope.
package issuelock

import "sync"

// Set is a keyed mutex: one lock per issue ID, created on first use.
// Locks are never discarded; the set is bounded by the number of issues
// a single run touches.
type Set struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSet creates an empty lock set.
func NewSet() *Set {
	return &Set{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for the given issue, blocking until available.
func (s *Set) Lock(issueID string) {
	s.get(issueID).Lock()
}

// Unlock releases the lock for the given issue. Unlocking an issue that
// was never locked panics, same as sync.Mutex.
func (s *Set) Unlock(issueID string) {
	s.get(issueID).Unlock()
}

func (s *Set) get(issueID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[issueID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[issueID] = m
	}
	return m
}
