package yunhu

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// TaskSet tracks in-flight event handlers so shutdown can wait for them.
// It never cancels a running task.
type TaskSet struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]struct{}
	wg    sync.WaitGroup
}

// NewTaskSet returns an empty task set.
func NewTaskSet() *TaskSet {
	return &TaskSet{tasks: map[uuid.UUID]struct{}{}}
}

// Go runs fn in a new goroutine and tracks it until it returns.
func (s *TaskSet) Go(fn func()) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	s.tasks[id] = struct{}{}
	s.mu.Unlock()
	s.wg.Add(1)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.tasks, id)
			s.mu.Unlock()
			s.wg.Done()
		}()
		fn()
	}()
	return id
}

// Len returns the number of tasks still running.
func (s *TaskSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Wait blocks until every tracked task has returned or ctx is done. Tasks
// still running when ctx expires are abandoned, not cancelled.
func (s *TaskSet) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
