package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		done <- job
		return nil
	}, QueueConfig{RetryDelay: time.Millisecond, MaxRetries: 5})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Key: "rewards:course:1"}))

	select {
	case job := <-done:
		assert.Equal(t, "rewards:course:1", job.Key)
		assert.Equal(t, 2, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var mu sync.Mutex
	attempts := []int{}
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		attempts = append(attempts, job.Attempt)
		mu.Unlock()
		return errors.New("permanent")
	}, QueueConfig{RetryDelay: time.Millisecond, MaxRetries: 2})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{Key: "k"}))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(attempts) == 3
	}, 2*time.Second, 5*time.Millisecond)
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, attempts)
}

func TestQueueLifecycle(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.False(t, q.Running())
	assert.Error(t, q.Enqueue(Job{Key: "k"}))

	q.Start(context.Background())
	q.Start(context.Background())
	assert.True(t, q.Running())

	q.Stop()
	q.Stop()
	assert.False(t, q.Running())
	assert.Error(t, q.Enqueue(Job{Key: "k"}))
}

func TestQueueCoalescesPendingKeys(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Key: "rewards:course:7"}))
	require.NoError(t, q.Enqueue(Job{Key: "rewards:course:7"}))
	require.NoError(t, q.Enqueue(Job{Key: "rewards:course:7"}))
	close(release)

	assert.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.pending) == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	require.NoError(t, q.Enqueue(Job{Key: "rewards:course:7"}))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, 2*time.Second, 5*time.Millisecond)
}
