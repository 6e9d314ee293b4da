package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsTasks(t *testing.T) {
	d := NewDispatcher(2, 10)
	d.Start(context.Background())
	defer d.Stop()

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		err := d.Enqueue("session", func(ctx context.Context) {
			defer wg.Done()
			count.Add(1)
		})
		require.NoError(t, err)
	}
	wg.Wait()

	assert.Equal(t, int64(5), count.Load())
}

func TestDispatcher_QueueFull(t *testing.T) {
	d := NewDispatcher(1, 1)
	// Not started: nothing drains the queue.

	require.NoError(t, d.Enqueue("first", func(ctx context.Context) {}))
	err := d.Enqueue("second", func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, d.QueueDepth())
}

func TestDispatcher_StopWaitsForRunningTask(t *testing.T) {
	d := NewDispatcher(1, 1)
	d.Start(context.Background())

	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, d.Enqueue("slow", func(ctx context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	}))

	<-started
	d.Stop()
	assert.True(t, finished.Load(), "Stop returns only after the running task completes")
}

func TestDispatcher_EnqueueAfterStop(t *testing.T) {
	d := NewDispatcher(1, 1)
	d.Start(context.Background())
	d.Stop()

	err := d.Enqueue("late", func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestDispatcher_Cancel(t *testing.T) {
	d := NewDispatcher(1, 1)
	d.Start(context.Background())
	defer d.Stop()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, d.Enqueue("target", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}))

	<-started
	assert.Equal(t, 1, d.ActiveCount())
	assert.True(t, d.Cancel("target"))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}

	assert.False(t, d.Cancel("unknown"))
}

func TestDispatcher_RecoverFromPanic(t *testing.T) {
	d := NewDispatcher(1, 2)
	d.Start(context.Background())
	defer d.Stop()

	done := make(chan struct{})
	require.NoError(t, d.Enqueue("bad", func(ctx context.Context) {
		defer close(done)
		panic("boom")
	}))
	<-done

	// The worker survives and keeps serving tasks.
	ran := make(chan struct{})
	require.NoError(t, d.Enqueue("good", func(ctx context.Context) {
		close(ran)
	}))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker did not recover after panic")
	}
	assert.Equal(t, 0, d.ActiveCount())
}
