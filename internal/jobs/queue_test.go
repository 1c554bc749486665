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

type memStore struct {
	mu      sync.Mutex
	records map[string]StatusRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]StatusRecord)}
}

func (s *memStore) SaveStatus(_ context.Context, id string, rec StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = rec
	return nil
}

func (s *memStore) LoadStatus(_ context.Context, id string) (StatusRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok, nil
}

func newTestQueue(opts ...Option) (*Queue, *Tracker) {
	tr := NewTracker(1)
	opts = append([]Option{WithPollInterval(20 * time.Millisecond)}, opts...)
	return NewQueue(tr, opts...), tr
}

func TestQueue_EnqueuePositions(t *testing.T) {
	q, _ := newTestQueue()

	assert.Equal(t, 0, q.Enqueue(Job{ID: "a", TargetLang: "en-fr"}))
	assert.Equal(t, 1, q.Enqueue(Job{ID: "b", TargetLang: "en-fr"}))
	assert.Equal(t, 2, q.Enqueue(Job{ID: "c", TargetLang: "en-fr"}))

	assert.Equal(t, 1, q.Position("b"))
	assert.Equal(t, -1, q.Position("zzz"))
	assert.Equal(t, 3, q.Len())

	rec := q.Status(context.Background(), "c")
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, 2, rec.QueuePosition)
	assert.Equal(t, "en-fr", rec.TargetLanguage)
}

func TestQueue_StatusUnknownIsNotFound(t *testing.T) {
	q, _ := newTestQueue(WithStore(newMemStore()))
	rec := q.Status(context.Background(), "nope")
	assert.Equal(t, StatusNotFound, rec.Status)
	assert.Equal(t, -1, rec.QueuePosition)
}

func TestQueue_PositionsDecreaseToMinusOne(t *testing.T) {
	q, _ := newTestQueue()
	gates := map[string]chan struct{}{
		"a": make(chan struct{}),
		"b": make(chan struct{}),
		"c": make(chan struct{}),
	}
	for _, id := range []string{"a", "b", "c"} {
		q.Enqueue(Job{ID: id, TargetLang: "en-de"})
	}

	q.Start(context.Background(), func(_ context.Context, job Job) error {
		<-gates[job.ID]
		return nil
	})
	defer q.Stop()

	ctx := context.Background()
	require.Eventually(t, func() bool { return q.Position("a") == 0 && q.Position("c") == 2 }, time.Second, 5*time.Millisecond)

	last := q.Status(ctx, "c").QueuePosition
	for _, id := range []string{"a", "b", "c"} {
		close(gates[id])
		require.Eventually(t, func() bool {
			return q.Status(ctx, id).Status == StatusCompleted
		}, time.Second, 5*time.Millisecond)

		pos := q.Status(ctx, "c").QueuePosition
		assert.LessOrEqual(t, pos, last)
		last = pos
	}

	for _, id := range []string{"a", "b", "c"} {
		rec := q.Status(ctx, id)
		assert.Equal(t, StatusCompleted, rec.Status)
		assert.Equal(t, -1, rec.QueuePosition)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_RunsOneJobAtATime(t *testing.T) {
	q, _ := newTestQueue()

	var running, maxRunning atomic.Int32
	var order []string
	var mu sync.Mutex
	q.Start(context.Background(), func(_ context.Context, job Job) error {
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		order = append(order, job.ID)
		mu.Unlock()
		running.Add(-1)
		return nil
	})
	defer q.Stop()

	ids := []string{"1", "2", "3", "4", "5"}
	for _, id := range ids {
		q.Enqueue(Job{ID: id, TargetLang: "en-it"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Drain(ctx))

	assert.Equal(t, int32(1), maxRunning.Load())
	mu.Lock()
	assert.Equal(t, ids, order)
	mu.Unlock()
}

func TestQueue_ErrorKindsBecomeErrorStatus(t *testing.T) {
	store := newMemStore()
	q, tr := newTestQueue(WithStore(store))

	q.Start(context.Background(), func(_ context.Context, job Job) error {
		switch job.ID {
		case "bad-lang":
			return NewError(KindUnsupportedLanguage, "unsupported language en-xx")
		case "panics":
			var m map[string]int
			m["x"] = 1
		case "plain":
			return errors.New("plain failure")
		}
		return nil
	})
	defer q.Stop()

	for _, id := range []string{"bad-lang", "panics", "plain", "ok"} {
		q.Enqueue(Job{ID: id, TargetLang: "en-xx"})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Drain(ctx))

	bad := q.Status(ctx, "bad-lang")
	assert.Equal(t, StatusError, bad.Status)
	assert.Contains(t, bad.ErrorMessage, "unsupported language")
	assert.Equal(t, -1, bad.QueuePosition)

	assert.Equal(t, StatusError, q.Status(ctx, "panics").Status)
	assert.Contains(t, q.Status(ctx, "panics").ErrorMessage, "runtime error")
	assert.Equal(t, StatusError, q.Status(ctx, "plain").Status)
	assert.Equal(t, StatusCompleted, q.Status(ctx, "ok").Status)

	archived, ok, err := store.LoadStatus(ctx, "bad-lang")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusError, archived.Status)

	tr.Evict(time.Now().Add(time.Hour))
	assert.Equal(t, 0, tr.Len())
	fromStore := q.Status(ctx, "ok")
	assert.Equal(t, StatusCompleted, fromStore.Status)
}

func TestQueue_DequeuedJobIgnoresWorkerCancellation(t *testing.T) {
	q, _ := newTestQueue()

	started := make(chan struct{})
	finish := make(chan struct{})
	var jobCtxErr atomic.Value
	q.Start(context.Background(), func(ctx context.Context, _ Job) error {
		close(started)
		<-finish
		if ctx.Err() != nil {
			jobCtxErr.Store(ctx.Err())
		}
		return nil
	})

	q.Enqueue(Job{ID: "long", TargetLang: "en-pl"})
	q.Enqueue(Job{ID: "next", TargetLang: "en-pl"})
	<-started

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was running")
	case <-time.After(30 * time.Millisecond):
	}

	close(finish)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	assert.Nil(t, jobCtxErr.Load())
	assert.Equal(t, StatusCompleted, q.Status(context.Background(), "long").Status)
	assert.Equal(t, StatusPending, q.Status(context.Background(), "next").Status)
}

func TestQueue_DrainHonorsContext(t *testing.T) {
	q, _ := newTestQueue()
	q.Enqueue(Job{ID: "never-started", TargetLang: "en-cs"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Drain(ctx), context.DeadlineExceeded)
}

func TestQueue_DrainOnEmptyQueueReturns(t *testing.T) {
	q, _ := newTestQueue()
	assert.NoError(t, q.Drain(context.Background()))
	q.Stop()
}
