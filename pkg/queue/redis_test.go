package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordJob struct {
	mu    sync.Mutex
	got   []string
	calls atomic.Int32
	err   error
}

func (j *recordJob) Name() string { return "record" }
func (j *recordJob) Type() string { return "note" }

func (j *recordJob) Handle(_ context.Context, payload []byte) error {
	j.calls.Add(1)
	if j.err != nil {
		return j.err
	}
	var s string
	if err := json.Unmarshal(payload, &s); err != nil {
		return err
	}
	j.mu.Lock()
	j.got = append(j.got, s)
	j.mu.Unlock()
	return nil
}

func (j *recordJob) seen() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.got...)
}

func newQueue(t *testing.T, cfg *Config, opts ...RedisQueueOption) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(client, cfg, append([]RedisQueueOption{WithKeyPrefix("test:q")}, opts...)...), mr
}

func stop(t *testing.T, q *RedisQueue) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
}

func TestRedisQueue_Delivers(t *testing.T) {
	q, _ := newQueue(t, &Config{Workers: 2})
	job := &recordJob{}
	q.RegisterJob(job)
	require.NoError(t, q.Start(context.Background()))
	defer stop(t, q)

	require.NoError(t, q.PublishMessage(context.Background(), "note", "hello"))
	require.Eventually(t, func() bool { return len(job.seen()) == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"hello"}, job.seen())
}

func TestRedisQueue_DeadLettersAfterRetries(t *testing.T) {
	q, mr := newQueue(t, &Config{RetryLimit: 1, RetryDelay: time.Second})
	job := &recordJob{err: errors.New("boom")}
	q.RegisterJob(job)
	require.NoError(t, q.Start(context.Background()))
	defer stop(t, q)

	require.NoError(t, q.Enqueue(context.Background(), "note", "x"))
	require.Eventually(t, func() bool {
		dlq, _ := mr.List("test:q:dlq")
		return len(dlq) == 1
	}, 8*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(2), job.calls.Load())
}

func TestRedisQueue_NoRetryGoesStraightToDLQ(t *testing.T) {
	q, mr := newQueue(t, &Config{RetryLimit: 0})
	job := &recordJob{err: errors.New("boom")}
	q.RegisterJob(job)
	require.NoError(t, q.Start(context.Background()))
	defer stop(t, q)

	require.NoError(t, q.Enqueue(context.Background(), "note", "x"))
	require.Eventually(t, func() bool {
		dlq, _ := mr.List("test:q:dlq")
		return len(dlq) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestRedisQueue_EnqueueErrors(t *testing.T) {
	q, _ := newQueue(t, nil)
	q.RegisterJob(&recordJob{})

	assert.Error(t, q.Enqueue(context.Background(), "note", "x"), "not running")

	require.NoError(t, q.Start(context.Background()))
	defer stop(t, q)
	assert.Error(t, q.Start(context.Background()), "already running")
	assert.Error(t, q.Enqueue(context.Background(), "other", "x"))
}

func TestRedisQueue_ProducerOnly(t *testing.T) {
	q, _ := newQueue(t, nil, WithMode(ModeProducerOnly))
	q.RegisterJob(&recordJob{})
	require.NoError(t, q.Start(context.Background()))
	defer stop(t, q)

	require.NoError(t, q.Enqueue(context.Background(), "anything", map[string]int{"n": 1}))
	n, err := q.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisQueue_StartFailsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	q := NewRedisQueue(client, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, q.Start(ctx))
}
