package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueueProcessesJobs(t *testing.T) {
	handled := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		handled <- job
		return nil
	}, QueueConfig{Workers: 1, Logger: zap.NewNop()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "j1", Type: "progress"}))

	select {
	case job := <-handled:
		require.Equal(t, "j1", job.ID)
		require.False(t, job.Enqueued.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("job was not handled")
	}
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil },
		QueueConfig{Logger: zap.NewNop()})

	err := q.Enqueue(context.Background(), Job{ID: "j1"})
	require.Error(t, err)
}

func TestQueueRetriesWithIncrementedAttempt(t *testing.T) {
	var mu sync.Mutex
	var attempts []int
	done := make(chan struct{})

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts = append(attempts, job.Attempt)
		if len(attempts) == 1 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond, Logger: zap.NewNop()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "j1"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{0, 1}, attempts)
}
