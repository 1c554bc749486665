package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MimeLyc/nottranslate-api/internal/auth"
	"github.com/MimeLyc/nottranslate-api/internal/jobs"
	"github.com/MimeLyc/nottranslate-api/internal/persistence"
	"github.com/MimeLyc/nottranslate-api/internal/storage"
)

const (
	defaultMaxUploadBytes = 20 << 20
	defaultStreamInterval = time.Second
)

// JobQueue accepts submissions and answers status queries
type JobQueue interface {
	Enqueue(job jobs.Job) int
	Status(ctx context.Context, id string) jobs.StatusRecord
	Len() int
}

// Database is the part of the sqlite store the handlers use
type Database interface {
	SaveFile(ctx context.Context, rec persistence.FileRecord) error
	GetFile(ctx context.Context, id string) (persistence.FileRecord, bool, error)
	ListFeedback(ctx context.Context, fileID string) ([]persistence.Feedback, error)
	SaveFeedback(ctx context.Context, fb persistence.Feedback) (int64, error)
	CountFiles(ctx context.Context) (int, error)
	CountFeedback(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// LoadedLanguages reports the pairs whose provider is already built
type LoadedLanguages interface {
	Loaded() []string
}

type Server struct {
	queue     JobQueue
	storage   storage.ObjectStorage
	db        Database
	validator auth.Validator
	providers LoadedLanguages

	mode           string
	maxUploadBytes int64
	streamInterval time.Duration

	engine *gin.Engine
	server *http.Server
}

type Option func(*Server)

// WithValidator protects the submission endpoints with API keys.
// Without it they are open.
func WithValidator(v auth.Validator) Option {
	return func(s *Server) {
		s.validator = v
	}
}

// WithProviders adds the warmed-up language pairs to /stats
func WithProviders(p LoadedLanguages) Option {
	return func(s *Server) {
		s.providers = p
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithMode sets the gin mode: release, debug or test
func WithMode(mode string) Option {
	return func(s *Server) {
		s.mode = mode
	}
}

// WithStreamInterval sets how often the status stream pushes a record
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

func NewServer(queue JobQueue, store storage.ObjectStorage, db Database, opts ...Option) *Server {
	s := &Server{
		queue:          queue,
		storage:        store,
		db:             db,
		mode:           gin.ReleaseMode,
		maxUploadBytes: defaultMaxUploadBytes,
		streamInterval: defaultStreamInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch s.mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(s.mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	s.engine = gin.New()
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	r := s.engine
	r.Use(recovery(), requestLogger(), cors())

	r.GET("/health", s.handleHealth)
	r.GET("/languages", s.handleLanguages)
	r.GET("/status/:id", s.handleStatus)
	r.GET("/status/:id/stream", s.handleStatusStream)
	r.GET("/file/:id", s.handleFile)
	r.GET("/content/:id", s.handleContent)
	r.GET("/stats", s.handleStats)

	protected := r.Group("/", s.requireAPIKey())
	protected.POST("/translate", s.handleTranslate)
	protected.POST("/feedback", s.handleFeedback)
	protected.GET("/feedback/:file_id", s.handleListFeedback)
}
