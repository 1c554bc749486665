package main

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/nottranslate-api/internal/config"
	"github.com/MimeLyc/nottranslate-api/internal/jobs"
)

type recorder struct {
	mu    sync.Mutex
	steps []string
}

func (r *recorder) add(step string) {
	r.mu.Lock()
	r.steps = append(r.steps, step)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.steps...)
}

type fakeScheduler struct {
	rec *recorder
}

func (f *fakeScheduler) Schedule(context.Context) error {
	f.rec.add("schedule")
	return nil
}

type fakeCron struct {
	rec *recorder
}

func (f *fakeCron) Start() {
	f.rec.add("cron start")
}

func (f *fakeCron) Stop() context.Context {
	f.rec.add("cron stop")
	return context.Background()
}

type fakeHTTP struct {
	rec          *recorder
	listenCalled chan struct{}
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newFakeHTTP(rec *recorder) *fakeHTTP {
	return &fakeHTTP{
		rec:          rec,
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(string) error {
	close(f.listenCalled)
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.rec.add("http shutdown")
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

type fakeWorker struct {
	rec      *recorder
	startCtx context.Context
}

func (f *fakeWorker) Start(ctx context.Context, _ jobs.Executor) {
	f.startCtx = ctx
	f.rec.add("worker start")
}

func (f *fakeWorker) Drain(context.Context) error {
	f.rec.add("drain")
	return nil
}

func (f *fakeWorker) Stop() {
	f.rec.add("worker stop")
}

func TestRunWithComponents_ShutdownOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{
		HTTP:   config.HTTPConfig{Addr: "127.0.0.1:0"},
		System: config.SystemConfig{ShutdownTimeout: time.Second},
	}
	rec := &recorder{}
	httpSrv := newFakeHTTP(rec)
	w := &fakeWorker{rec: rec}

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, cfg, components{
			scheduler: &fakeScheduler{rec: rec},
			cron:      &fakeCron{rec: rec},
			http:      httpSrv,
			worker:    w,
			execute:   func(context.Context, jobs.Job) error { return nil },
		})
	}()

	select {
	case <-httpSrv.listenCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("http server did not start")
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	assert.Equal(t, []string{
		"worker start", "schedule", "cron start",
		"http shutdown", "drain", "worker stop", "cron stop",
	}, rec.list())
	assert.NoError(t, w.startCtx.Err())
}

func TestRunWithComponents_DrainsRealQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{
		HTTP:   config.HTTPConfig{Addr: "127.0.0.1:0"},
		System: config.SystemConfig{ShutdownTimeout: 5 * time.Second},
	}
	rec := &recorder{}
	httpSrv := newFakeHTTP(rec)

	tracker := jobs.NewTracker(0)
	queue := jobs.NewQueue(tracker, jobs.WithPollInterval(10*time.Millisecond))
	release := make(chan struct{})
	execute := func(context.Context, jobs.Job) error {
		<-release
		return nil
	}

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, cfg, components{
			scheduler: &fakeScheduler{rec: rec},
			cron:      &fakeCron{rec: rec},
			http:      httpSrv,
			worker:    queue,
			execute:   execute,
		})
	}()
	<-httpSrv.listenCalled

	queue.Enqueue(jobs.Job{ID: "a", TargetLang: "en-fr"})
	queue.Enqueue(jobs.Job{ID: "b", TargetLang: "en-fr"})
	cancel()

	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown did not finish")
	}
	assert.Equal(t, jobs.StatusCompleted, tracker.Get("a").Status)
	assert.Equal(t, jobs.StatusCompleted, tracker.Get("b").Status)
}
