package service

import (
	"bytes"
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/MimeLyc/nottranslate-api/internal/jobs"
	"github.com/MimeLyc/nottranslate-api/internal/storage"
	"github.com/MimeLyc/nottranslate-api/internal/subtitle"
	"github.com/MimeLyc/nottranslate-api/internal/translator"
	"github.com/MimeLyc/nottranslate-api/pkg/log"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// ProviderSource resolves the translation provider of a language pair
type ProviderSource interface {
	Get(ctx context.Context, code string) (translator.Provider, error)
}

// FileIndex is told when a job's result exists
type FileIndex interface {
	MarkFileTranslated(ctx context.Context, id string) error
}

// Executor turns one queued job into a translated document in result storage.
type Executor struct {
	providers   ProviderSource
	storage     storage.ObjectStorage
	tracker     *jobs.Tracker
	files       FileIndex
	lineDelay   time.Duration
	productName string
	now         func() time.Time
}

type ExecutorOption func(*Executor)

// WithLineDelay pauses after every translated line
func WithLineDelay(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d >= 0 {
			e.lineDelay = d
		}
	}
}

// WithProductName sets the product named in the translation notice
func WithProductName(name string) ExecutorOption {
	return func(e *Executor) {
		if name != "" {
			e.productName = name
		}
	}
}

func WithFileIndex(files FileIndex) ExecutorOption {
	return func(e *Executor) {
		e.files = files
	}
}

func NewExecutor(
	providers ProviderSource,
	store storage.ObjectStorage,
	tracker *jobs.Tracker,
	opts ...ExecutorOption,
) *Executor {
	e := &Executor{
		providers:   providers,
		storage:     store,
		tracker:     tracker,
		productName: "NotTranslate",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the job. Failures come back as *jobs.JobError; the caller records them.
func (e *Executor) Execute(ctx context.Context, job jobs.Job) error {
	logger := log.With(log.Fields{log.FieldJobID: job.ID, log.FieldTargetLang: job.TargetLang})

	provider, err := e.providers.Get(ctx, job.TargetLang)
	if err != nil {
		if errors.Is(err, translator.ErrUnsupportedLanguage) {
			return jobs.NewErrorWithCause(jobs.KindUnsupportedLanguage, "unsupported target language "+job.TargetLang, err).
				WithContext("available", translator.Codes())
		}
		return jobs.NewErrorWithCause(jobs.KindTranslationProvider, "failed to load translation provider", err)
	}
	pair, err := translator.ParsePair(job.TargetLang)
	if err != nil {
		return jobs.NewErrorWithCause(jobs.KindUnsupportedLanguage, "unsupported target language "+job.TargetLang, err)
	}

	doc, err := e.load(ctx, job)
	if err != nil {
		return err
	}

	detected := subtitle.DetectLanguage(doc)
	if detected.String() != "und" {
		e.tracker.SetSourceLanguage(job.ID, detected.String())
		if detected != pair.Source {
			logger.Warn("Document looks like %s, expected %s", detected, pair.Source)
		}
	}

	dialogueLines := len(doc.Dialogue)
	e.tracker.Init(job.ID, len(doc.Lines), dialogueLines, job.TargetLang)
	logger.Info("Translating %d dialogue lines of %d", dialogueLines, len(doc.Lines))

	translations := make(map[int]string, dialogueLines)
	start := e.now()
	for i, dl := range doc.Dialogue {
		translated, err := provider.Translate(ctx, dl.Text)
		if err != nil {
			return jobs.NewErrorWithCause(jobs.KindTranslationProvider, "failed to translate line", err).
				WithContext("line", dl.Index+1)
		}
		translations[dl.Index] = translated

		done := i + 1
		now := e.now()
		eta := estimateRemaining(now.Sub(start), done, dialogueLines-done)
		e.tracker.Update(job.ID, done, eta.Seconds(), now.Add(eta))

		e.pace(ctx)
	}

	out, ok := doc.Render(translations).WithNotice(pair.TargetName(), e.productName)
	if !ok {
		logger.Warn("No [Events] format header, skipping translation notice")
	}

	data := []byte(out.String())
	if err := e.storage.Upload(ctx, storage.ResultKey(job.ID), bytes.NewReader(data), int64(len(data)), storage.SubtitleContentType); err != nil {
		return jobs.NewErrorWithCause(jobs.KindOutputWrite, "failed to store translated document", err).
			WithContext("key", storage.ResultKey(job.ID))
	}

	if e.files != nil {
		if err := e.files.MarkFileTranslated(ctx, job.ID); err != nil {
			logger.Warn("Failed to mark file translated: %v", err)
		}
	}
	e.tracker.SetCompleted(job.ID)
	return nil
}

func (e *Executor) load(ctx context.Context, job jobs.Job) (*subtitle.Document, error) {
	data, err := storage.ReadAll(ctx, e.storage, job.SourceKey)
	if err != nil {
		return nil, jobs.NewErrorWithCause(jobs.KindSourceRead, "failed to read source document", err).
			WithContext("key", job.SourceKey)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, jobs.NewError(jobs.KindSourceRead, "source document is not valid UTF-8").
			WithContext("key", job.SourceKey)
	}
	return subtitle.Parse(string(data)), nil
}

func (e *Executor) pace(ctx context.Context) {
	if e.lineDelay <= 0 {
		return
	}
	timer := time.NewTimer(e.lineDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// estimateRemaining extrapolates the average time per finished line over the remaining lines.
func estimateRemaining(elapsed time.Duration, done, remaining int) time.Duration {
	if done <= 0 || remaining <= 0 || elapsed <= 0 {
		return 0
	}
	return time.Duration(float64(elapsed) / float64(done) * float64(remaining))
}
