package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

var logrusLevels = map[LogLevel]logrus.Level{
	LevelDebug: logrus.DebugLevel,
	LevelInfo:  logrus.InfoLevel,
	LevelWarn:  logrus.WarnLevel,
	LevelError: logrus.ErrorLevel,
	LevelFatal: logrus.FatalLevel,
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

// ParseLevel maps a level name to a LogLevel, falling back to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Fields are structured key/values attached to a log entry.
type Fields map[string]any

const (
	FieldJobID      = "job_id"
	FieldRequestID  = "request_id"
	FieldComponent  = "component"
	FieldTargetLang = "target_language"
	FieldDurationMs = "duration_ms"
	FieldStatus     = "status"
)

// Options configures the global logger.
type Options struct {
	Level  string
	Format string // text or json
	File   string // optional rotating log file
	Output io.Writer
}

type Logger struct {
	level  LogLevel
	logger *logrus.Logger
	fields Fields
}

func NewLogger(level LogLevel) *Logger {
	return newLogger(level, Options{Output: os.Stdout})
}

func newLogger(level LogLevel, opts Options) *Logger {
	base := logrus.New()
	base.SetLevel(logrusLevels[level])
	base.ExitFunc = os.Exit

	if strings.EqualFold(opts.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	writers := make([]io.Writer, 0, 2)
	if opts.Output != nil {
		writers = append(writers, opts.Output)
	} else {
		writers = append(writers, os.Stdout)
	}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	base.SetOutput(io.MultiWriter(writers...))

	return &Logger{level: level, logger: base}
}

// SetLevel sets the minimum level that is emitted
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	l.logger.SetLevel(logrusLevels[level])
}

// With returns a logger carrying the given fields on every entry.
func (l *Logger) With(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, logger: l.logger, fields: merged}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Fatal logs and exits the process
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(LevelFatal, format, args...)
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	entry := l.logger.WithField("caller", caller)
	if len(l.fields) > 0 {
		entry = entry.WithFields(logrus.Fields(l.fields))
	}

	message := fmt.Sprintf(format, args...)
	switch level {
	case LevelDebug:
		entry.Debug(message)
	case LevelInfo:
		entry.Info(message)
	case LevelWarn:
		entry.Warn(message)
	case LevelError:
		entry.Error(message)
	case LevelFatal:
		entry.Fatal(message)
	}
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// Init replaces the global logger.
func Init(opts Options) {
	logger := newLogger(ParseLevel(opts.Level), opts)
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// InitLogger initializes the global logger with a level and default output
func InitLogger(level LogLevel) {
	globalMu.Lock()
	globalLogger = NewLogger(level)
	globalMu.Unlock()
}

func GetLogger() *Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

// With returns the global logger enriched with fields.
func With(fields Fields) *Logger {
	return GetLogger().With(fields)
}

// Convenience functions
func Debug(format string, args ...interface{}) {
	GetLogger().log(LevelDebug, format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().log(LevelInfo, format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().log(LevelWarn, format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().log(LevelError, format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetLogger().log(LevelFatal, format, args...)
}
