package async

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Tracker runs keyed background tasks. At most one task per key runs at a
// time, and callers can wait for any task, or all of them, to finish.
type Tracker struct {
	mu      sync.Mutex
	wg      sync.WaitGroup
	running map[string]*AsyncError
}

func NewTracker() *Tracker {
	return &Tracker{running: make(map[string]*AsyncError)}
}

// Go runs f in a new goroutine under key. If a task with that key is still
// running, f is dropped and the running task's result is returned instead.
func (t *Tracker) Go(key string, f func() error) *AsyncError {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.running[key]; ok {
		return e
	}
	e := newAsyncError()
	t.running[key] = e
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		err := f()
		if err != nil {
			log.WithFields(log.Fields{"task": key, "error": err}).Error("Background task failed")
		}
		t.mu.Lock()
		delete(t.running, key)
		t.mu.Unlock()
		e.SetValue(err)
	}()
	return e
}

// Count is the number of tasks still running.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.running)
}

// Wait blocks until every task started so far has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
