package issuelock

import (
	"sync"
	"testing"
)

func TestSetSerializesSameIssue(t *testing.T) {
	s := NewSet()

	const workers = 8
	const iterations = 200
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				s.Lock("is-1")
				counter++
				s.Unlock("is-1")
			}
		}()
	}
	wg.Wait()

	if counter != workers*iterations {
		t.Errorf("counter = %d, want %d", counter, workers*iterations)
	}
}

func TestSetIndependentIssues(t *testing.T) {
	s := NewSet()

	s.Lock("is-1")
	done := make(chan struct{})
	go func() {
		// A different issue's lock must not block on is-1.
		s.Lock("is-2")
		s.Unlock("is-2")
		close(done)
	}()
	<-done
	s.Unlock("is-1")
}

func TestSetReuseAfterUnlock(t *testing.T) {
	s := NewSet()
	for i := 0; i < 3; i++ {
		s.Lock("is-1")
		s.Unlock("is-1")
	}
}
