package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/MimeLyc/nottranslate-api/pkg/log"
)

const defaultPollInterval = 60 * time.Second

// Queue is an unbounded FIFO of jobs consumed by exactly one worker.
// At most one job runs at a time; a dequeued job always runs to the end.
type Queue struct {
	tracker      *Tracker
	store        Store
	pollInterval time.Duration

	mu      sync.Mutex
	waiting []Job
	running string
	idle    []chan struct{}
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	notify chan struct{}
}

type Option func(*Queue)

// WithStore archives terminal records and serves them once the tracker forgot them.
func WithStore(store Store) Option {
	return func(q *Queue) {
		q.store = store
	}
}

// WithPollInterval bounds how long the idle worker blocks before re-polling.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

func NewQueue(tracker *Tracker, opts ...Option) *Queue {
	q := &Queue{
		tracker:      tracker,
		pollInterval: defaultPollInterval,
		notify:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends job and returns its queue position. It never blocks.
func (q *Queue) Enqueue(job Job) int {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	q.tracker.SetPending(job.ID, job.TargetLang)

	q.mu.Lock()
	q.waiting = append(q.waiting, job)
	pos := len(q.waiting) - 1
	if q.running != "" {
		pos++
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	log.With(log.Fields{log.FieldJobID: job.ID, log.FieldTargetLang: job.TargetLang}).
		Info("Job queued at position %d", pos)
	return pos
}

// Position is the job's index among [running, waiting...], or -1 when it is not active.
func (q *Queue) Position(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.positionLocked(id)
}

func (q *Queue) positionLocked(id string) int {
	offset := 0
	if q.running != "" {
		if q.running == id {
			return 0
		}
		offset = 1
	}
	for i, job := range q.waiting {
		if job.ID == id {
			return i + offset
		}
	}
	return -1
}

// Len counts active jobs, running one included
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.waiting)
	if q.running != "" {
		n++
	}
	return n
}

// Status returns the job's record with its live queue position.
// It never fails: unknown ids yield the not_found sentinel.
func (q *Queue) Status(ctx context.Context, id string) StatusRecord {
	pos := q.Position(id)
	rec := q.tracker.Get(id)

	if rec.Status == StatusNotFound {
		if q.store == nil {
			return rec
		}
		archived, ok, err := q.store.LoadStatus(ctx, id)
		if err != nil {
			log.Warn("Failed to load archived status for %s: %v", id, err)
			return rec
		}
		if ok {
			return archived
		}
		return rec
	}

	if !rec.Status.Terminal() {
		rec.QueuePosition = pos
	}
	return rec
}

// Start launches the worker. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context, exec Executor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	workerCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.done = make(chan struct{})
	go q.worker(workerCtx, exec)
}

// Drain blocks until no job is waiting or running, or ctx ends.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if len(q.waiting) == 0 && q.running == "" {
		q.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	q.idle = append(q.idle, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the worker and waits for it to exit. A running job finishes first.
func (q *Queue) Stop() {
	q.mu.Lock()
	cancel, done := q.cancel, q.done
	q.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (q *Queue) worker(ctx context.Context, exec Executor) {
	defer close(q.done)
	log.Info("Translation worker started")

	timer := time.NewTimer(q.pollInterval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			log.Info("Translation worker stopped")
			return
		}

		job, ok := q.next()
		if ok {
			q.run(ctx, exec, job)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(q.pollInterval)

		select {
		case <-ctx.Done():
		case <-q.notify:
		case <-timer.C:
			// poll timeout, look again
		}
	}
}

// next pops the head of the queue into the running slot, or signals idleness.
func (q *Queue) next() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.waiting) == 0 {
		for _, ch := range q.idle {
			close(ch)
		}
		q.idle = nil
		return Job{}, false
	}

	job := q.waiting[0]
	q.waiting[0] = Job{}
	q.waiting = q.waiting[1:]
	q.running = job.ID
	return job, true
}

func (q *Queue) run(ctx context.Context, exec Executor, job Job) {
	defer q.release(job.ID)

	logger := log.With(log.Fields{log.FieldJobID: job.ID, log.FieldTargetLang: job.TargetLang})
	start := time.Now()

	jobCtx := context.WithoutCancel(ctx)
	err := SafeExecute(func() error { return exec(jobCtx, job) })

	if err != nil {
		switch kind := KindOf(err); kind {
		case KindUnsupportedLanguage:
			logger.Warn("Job rejected: %v", err)
		case KindSourceRead:
			logger.Error("Job failed reading source %s: %v", job.SourceKey, err)
		case KindTranslationProvider:
			logger.Error("Job failed in translation provider: %v", err)
		case KindOutputWrite:
			logger.Error("Job failed writing result: %v", err)
		case KindUnknown:
			logger.Error("Job failed unexpectedly: %v", err)
		}
		q.tracker.SetError(job.ID, err.Error())
	} else {
		if q.tracker.Get(job.ID).Status != StatusCompleted {
			q.tracker.SetCompleted(job.ID)
		}
		logger.With(log.Fields{log.FieldDurationMs: time.Since(start).Milliseconds()}).
			Info("Job completed")
	}

	q.archive(jobCtx, job.ID)
}

func (q *Queue) archive(ctx context.Context, id string) {
	if q.store == nil {
		return
	}
	rec := q.tracker.Get(id)
	if err := q.store.SaveStatus(ctx, id, rec); err != nil {
		log.Error("Failed to archive status of job %s: %v", id, err)
	}
}

// release removes id from the active set; always the last step of a job.
func (q *Queue) release(id string) {
	q.mu.Lock()
	if q.running == id {
		q.running = ""
	}
	q.mu.Unlock()
}
