package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/nottranslate-api/internal/auth"
	"github.com/MimeLyc/nottranslate-api/internal/config"
	"github.com/MimeLyc/nottranslate-api/internal/httpapi"
	"github.com/MimeLyc/nottranslate-api/internal/jobs"
	"github.com/MimeLyc/nottranslate-api/internal/llm"
	"github.com/MimeLyc/nottranslate-api/internal/persistence"
	"github.com/MimeLyc/nottranslate-api/internal/service"
	"github.com/MimeLyc/nottranslate-api/internal/storage"
	"github.com/MimeLyc/nottranslate-api/internal/translator"
	"github.com/MimeLyc/nottranslate-api/pkg/log"
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

type worker interface {
	Start(ctx context.Context, exec jobs.Executor)
	Drain(ctx context.Context) error
	Stop()
}

type components struct {
	scheduler scheduler
	cron      cronEngine
	http      httpServer
	worker    worker
	execute   jobs.Executor
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal("Server exited: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Init(log.Options{
		Level:  cfg.System.LogLevel,
		Format: cfg.System.LogFormat,
		File:   cfg.System.LogFile,
	})

	db, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database: %v", err)
		}
	}()

	objects, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}

	factory, err := newFactory(cfg)
	if err != nil {
		return err
	}
	registry := translator.NewRegistry(factory)

	tracker := jobs.NewTracker(cfg.Translate.SecondsPerLine)
	queue := jobs.NewQueue(tracker,
		jobs.WithStore(db),
		jobs.WithPollInterval(cfg.Translate.PollInterval),
	)
	executor := service.NewExecutor(registry, objects, tracker,
		service.WithLineDelay(cfg.Translate.LineDelay),
		service.WithProductName(cfg.Translate.ProductName),
		service.WithFileIndex(db),
	)

	cronRunner := cron.New()
	cleaner := service.NewCleaner(cronRunner, cfg.Cleanup.CronExpr, cfg.Cleanup.Retention, objects, db, tracker, queue)

	opts := []httpapi.Option{
		httpapi.WithMode(cfg.HTTP.Mode),
		httpapi.WithMaxUploadBytes(cfg.MaxUploadBytes()),
		httpapi.WithProviders(registry),
	}
	if v := newValidator(cfg); v != nil {
		opts = append(opts, httpapi.WithValidator(v))
	} else {
		log.Warn("No API keys configured, submission endpoints are open")
	}
	server := httpapi.NewServer(queue, objects, db, opts...)

	return runWithComponents(ctx, cfg, components{
		scheduler: cleaner,
		cron:      cronRunner,
		http:      server,
		worker:    queue,
		execute:   executor.Execute,
	})
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	if cfg.Storage.Type == "s3" {
		s3cfg := cfg.Storage.S3
		s, err := storage.NewS3Storage(ctx, &storage.S3Config{
			Endpoint:  s3cfg.Endpoint,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
			UseSSL:    s3cfg.UseSSL,
			Bucket:    s3cfg.Bucket,
			Region:    s3cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket %s: %w", s3cfg.Bucket, err)
		}
		return s, nil
	}

	s, err := storage.NewLocalStorage(cfg.StorageDir())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local storage: %w", err)
	}
	return s, nil
}

func newFactory(cfg *config.Config) (translator.Factory, error) {
	if cfg.Translate.Backend == "llm" {
		client, err := llm.NewClient(&llm.Config{
			APIKey:      cfg.LLM.APIKey,
			APIURL:      cfg.LLM.APIURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     time.Duration(cfg.LLM.Timeout) * time.Second,
			AppName:     cfg.Translate.ProductName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
		log.Info("Translating with llm model %s", client.Model())
		return translator.LLMFactory(client), nil
	}

	log.Info("Translating with opus-mt at %s", cfg.Translate.OpusMTURL)
	return translator.NewOpusMT(cfg.Translate.OpusMTURL, 2*time.Minute).Factory(), nil
}

// newValidator returns nil when no key source is configured
func newValidator(cfg *config.Config) auth.Validator {
	var chain auth.Chain
	if len(cfg.Auth.APIKeys) > 0 {
		chain = append(chain, auth.NewStaticValidator(cfg.Auth.APIKeys))
	}
	if cfg.Auth.PocketBaseURL != "" {
		pb := auth.NewPocketBaseValidator(cfg.Auth.PocketBaseURL, cfg.Auth.PocketBaseKey, 10*time.Second)
		chain = append(chain, auth.NewCachedValidator(pb, cfg.Auth.CacheTTL))
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

// runWithComponents serves until ctx ends, then shuts down in order: stop accepting
// submissions, drain the queue, stop the worker, stop the cron.
func runWithComponents(ctx context.Context, cfg *config.Config, c components) error {
	// the worker outlives ctx until the queue is drained
	c.worker.Start(context.WithoutCancel(ctx), c.execute)

	if err := c.scheduler.Schedule(ctx); err != nil {
		c.worker.Stop()
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	c.cron.Start()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server on %s", cfg.HTTP.Addr)
		if err := c.http.ListenAndServe(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err, ok := <-errCh:
		if ok {
			serveErr = fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := c.http.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown: %v", err)
	}
	cancel()

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.System.ShutdownTimeout)
	if err := c.worker.Drain(drainCtx); err != nil {
		log.Warn("Queue not drained before timeout: %v", err)
	}
	cancel()
	c.worker.Stop()

	<-c.cron.Stop().Done()
	log.Info("Shutdown complete")
	return serveErr
}
