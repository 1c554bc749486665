package jobs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUnsupportedLanguage
	KindSourceRead
	KindTranslationProvider
	KindOutputWrite
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnsupportedLanguage:
		return "UnsupportedLanguage"
	case KindSourceRead:
		return "SourceRead"
	case KindTranslationProvider:
		return "TranslationProvider"
	case KindOutputWrite:
		return "OutputWrite"
	default:
		return "Unknown"
	}
}

// JobError is the failure of a job, classified by kind.
type JobError struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Cause   error
}

func NewError(kind ErrorKind, message string) *JobError {
	return &JobError{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(kind ErrorKind, message string, cause error) *JobError {
	return &JobError{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *JobError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *JobError) Unwrap() error {
	return e.Cause
}

func (e *JobError) WithContext(key string, value any) *JobError {
	e.Context[key] = value
	return e
}

// KindOf classifies err; anything that is not a JobError is KindUnknown.
func KindOf(err error) ErrorKind {
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Kind
	}
	return KindUnknown
}

// SafeExecute runs fn and turns a panic into a KindUnknown error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(KindUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
