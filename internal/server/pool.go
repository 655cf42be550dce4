package server

import (
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Task is a unit of work scheduled on a Pool.
type Task func()

// Pool is a fixed-size worker pool with a bounded task queue. Submission
// never blocks: when the queue is full the task is rejected and the caller
// decides how to shed load.
type Pool struct {
	name  string
	tasks chan Task

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool starts a worker pool with the given worker count and queue
// capacity. A worker count of zero means one worker per CPU.
func NewPool(name string, workers, queueCapacity int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueCapacity <= 0 {
		queueCapacity = 1
	}

	p := &Pool{
		name:  name,
		tasks: make(chan Task, queueCapacity),
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	slog.Info("worker pool started", "pool", name, "workers", workers, "queue", queueCapacity)
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// TrySubmit enqueues a task, reporting false if the queue is full or the
// pool has stopped.
func (p *Pool) TrySubmit(task Task) (accepted bool) {
	defer func() {
		// Submitting to a stopped pool loses the race against close(p.tasks);
		// treat it as a rejection rather than a crash.
		if recover() != nil {
			accepted = false
		}
	}()

	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for in-flight tasks to drain, up to the
// grace period. Safe to call multiple times.
func (p *Pool) Stop(grace time.Duration) {
	p.stopOnce.Do(func() {
		close(p.tasks)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			slog.Info("worker pool drained", "pool", p.name)
		case <-time.After(grace):
			slog.Warn("worker pool stop timed out", "pool", p.name, "grace", grace)
		}
	})
}
