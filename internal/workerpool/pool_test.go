package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ExecutesAllTasks(t *testing.T) {
	p := New(Config{Name: "test", MaxWorkers: 4, QueueSize: 16})
	defer p.Stop()

	var done int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), Task{
			ID: "t",
			Fn: func(context.Context) error {
				defer wg.Done()
				atomic.AddInt32(&done, 1)
				return nil
			},
		})
		require.NoError(t, err)
	}

	wg.Wait()
	assert.Equal(t, int32(20), atomic.LoadInt32(&done))
}

func TestPool_RecoverFromPanic(t *testing.T) {
	p := New(Config{Name: "test", MaxWorkers: 1, QueueSize: 4})
	defer p.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, p.Submit(context.Background(), Task{
		ID: "panics",
		Fn: func(context.Context) error {
			defer wg.Done()
			panic("boom")
		},
	}))

	ran := false
	require.NoError(t, p.Submit(context.Background(), Task{
		ID: "survives",
		Fn: func(context.Context) error {
			defer wg.Done()
			ran = true
			return nil
		},
	}))

	wg.Wait()
	assert.True(t, ran, "a panicking task must not kill the worker")
}

func TestPool_SubmitAfterStopFails(t *testing.T) {
	p := New(Config{Name: "test", MaxWorkers: 1, QueueSize: 1})
	p.Stop()

	err := p.Submit(context.Background(), Task{ID: "late", Fn: func(context.Context) error { return nil }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped")
}

func TestPool_SubmitHonorsContext(t *testing.T) {
	p := New(Config{Name: "test", MaxWorkers: 1, QueueSize: 1})
	defer p.Stop()

	block := make(chan struct{})
	defer close(block)

	// Occupy the single worker and fill the queue.
	_ = p.Submit(context.Background(), Task{ID: "blocker", Fn: func(context.Context) error {
		<-block
		return nil
	}})
	_ = p.Submit(context.Background(), Task{ID: "queued", Fn: func(context.Context) error { return nil }})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, Task{ID: "overflow", Fn: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
