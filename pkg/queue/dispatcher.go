// Package queue runs analysis tasks on a bounded pool of background workers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrQueueFull is returned when the task buffer has no capacity left.
var ErrQueueFull = errors.New("task queue is full")

// ErrStopped is returned when work is submitted after shutdown began.
var ErrStopped = errors.New("dispatcher is stopped")

// Task is one unit of background work.
type Task func(ctx context.Context)

type queuedTask struct {
	sessionID string
	run       Task
}

// Dispatcher manages a pool of workers consuming a bounded task queue.
type Dispatcher struct {
	workerCount int
	tasks       chan queuedTask
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	// Active task registry: session_id → cancel function
	active  map[string]context.CancelFunc
	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewDispatcher creates a dispatcher with the given worker count and queue
// capacity. Both are clamped to at least 1.
func NewDispatcher(workerCount, queueSize int) *Dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		workerCount: workerCount,
		tasks:       make(chan queuedTask, queueSize),
		stopCh:      make(chan struct{}),
		active:      make(map[string]context.CancelFunc),
	}
}

// Start spawns the worker goroutines. It is safe to call multiple times;
// subsequent calls are no-ops.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		slog.Warn("Dispatcher already started, ignoring duplicate Start call")
		return
	}
	d.started = true
	d.mu.Unlock()

	slog.Info("Starting dispatcher", "worker_count", d.workerCount)

	for i := 0; i < d.workerCount; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runWorker(ctx, workerID)
		}()
	}
}

// Stop signals the workers to stop and waits for them to finish. Workers
// complete their current task before exiting; queued tasks that never ran
// are logged and abandoned.
func (d *Dispatcher) Stop() {
	slog.Info("Stopping dispatcher gracefully")

	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	active := d.activeSessionIDs()
	if len(active) > 0 {
		slog.Info("Waiting for active tasks to complete",
			"count", len(active),
			"session_ids", active)
	}

	d.stopOnce.Do(func() { close(d.stopCh) })
	d.wg.Wait()

	// Drain whatever never got picked up.
	for {
		select {
		case task := <-d.tasks:
			slog.Warn("Abandoning queued task at shutdown", "session_id", task.sessionID)
		default:
			slog.Info("Dispatcher stopped gracefully")
			return
		}
	}
}

// Enqueue submits a task for background execution.
func (d *Dispatcher) Enqueue(sessionID string, task func(ctx context.Context)) error {
	d.mu.RLock()
	stopped := d.stopped
	d.mu.RUnlock()
	if stopped {
		return ErrStopped
	}

	select {
	case d.tasks <- queuedTask{sessionID: sessionID, run: task}:
		slog.Debug("Task enqueued", "session_id", sessionID)
		return nil
	default:
		slog.Warn("Task queue full, rejecting task", "session_id", sessionID)
		return ErrQueueFull
	}
}

// Cancel triggers context cancellation for a running task. Returns true if
// the session had a task in flight.
func (d *Dispatcher) Cancel(sessionID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if cancel, ok := d.active[sessionID]; ok {
		cancel()
		return true
	}
	return false
}

// ActiveCount returns the number of tasks currently executing.
func (d *Dispatcher) ActiveCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.active)
}

// QueueDepth returns the number of tasks waiting for a worker.
func (d *Dispatcher) QueueDepth() int {
	return len(d.tasks)
}

func (d *Dispatcher) runWorker(ctx context.Context, workerID string) {
	slog.Debug("Worker started", "worker_id", workerID)
	for {
		select {
		case <-d.stopCh:
			slog.Debug("Worker stopping", "worker_id", workerID)
			return
		case <-ctx.Done():
			slog.Debug("Worker context cancelled", "worker_id", workerID)
			return
		case task := <-d.tasks:
			d.execute(ctx, workerID, task)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, workerID string, task queuedTask) {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.register(task.sessionID, cancel)
	defer d.unregister(task.sessionID)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Task panicked",
				"worker_id", workerID,
				"session_id", task.sessionID,
				"panic", r)
		}
	}()

	slog.Debug("Worker picked up task", "worker_id", workerID, "session_id", task.sessionID)
	task.run(taskCtx)
}

func (d *Dispatcher) register(sessionID string, cancel context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active[sessionID] = cancel
}

func (d *Dispatcher) unregister(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.active, sessionID)
}

func (d *Dispatcher) activeSessionIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.active))
	for id := range d.active {
		ids = append(ids, id)
	}
	return ids
}
