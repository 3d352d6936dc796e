// Package server schedules the recurring per-connection poll tasks on a
// shared worker pool, so the number of goroutines blocked on sockets stays
// bounded by the pool size rather than the client count.
package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type pollTask struct {
	id        uint64
	tick      func()
	busy      atomic.Bool
	cancelled atomic.Bool
}

// pollScheduler re-invokes every registered task on a fixed tick. Tasks are
// tracked in a map keyed by a stable id so cancellation on disconnect is an
// O(1), race-free operation; a cancelled task is never invoked again.
type pollScheduler struct {
	interval time.Duration
	workers  int

	mu     sync.Mutex
	tasks  map[uint64]*pollTask
	nextID uint64
}

func newPollScheduler(interval time.Duration, workers int) *pollScheduler {
	if workers <= 0 {
		workers = 1
	}
	return &pollScheduler{
		interval: interval,
		workers:  workers,
		tasks:    make(map[uint64]*pollTask),
	}
}

// run dispatches ticks until the context is cancelled. Call in its own
// goroutine; it owns the worker pool for its lifetime and may be invoked
// again after it returns, so each invocation gets a fresh job queue.
func (s *pollScheduler) run(ctx context.Context) {
	jobs := make(chan *pollTask, s.workers)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				if !task.cancelled.Load() {
					task.tick()
				}
				task.busy.Store(false)
			}
		}()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case <-ticker.C:
			s.dispatch(jobs)
		}
	}
}

// dispatch hands every idle task to the pool. A task whose previous tick is
// still running is skipped, and a saturated pool delays a task to the next
// tick instead of blocking the dispatcher.
func (s *pollScheduler) dispatch(jobs chan<- *pollTask) {
	s.mu.Lock()
	snapshot := make([]*pollTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		snapshot = append(snapshot, task)
	}
	s.mu.Unlock()

	for _, task := range snapshot {
		if task.cancelled.Load() {
			continue
		}
		if !task.busy.CompareAndSwap(false, true) {
			continue
		}
		select {
		case jobs <- task:
		default:
			task.busy.Store(false)
		}
	}
}

// Schedule registers a recurring task and returns its cancellation handle.
func (s *pollScheduler) Schedule(tick func()) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.tasks[id] = &pollTask{id: id, tick: tick}
	return id
}

// Cancel removes the task so it is never dispatched again. A tick already
// handed to a worker checks the cancelled flag before running. No-op for
// unknown ids.
func (s *pollScheduler) Cancel(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return
	}
	task.cancelled.Store(true)
	delete(s.tasks, id)
}

// Len reports how many tasks are currently scheduled.
func (s *pollScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
