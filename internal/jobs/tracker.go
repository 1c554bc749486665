package jobs

import (
	"sync"
	"time"
)

// Tracker holds the live status record of every known job.
// Every mutation replaces the whole record, so readers always see a complete snapshot.
type Tracker struct {
	secondsPerLine float64
	now            func() time.Time

	mu      sync.RWMutex
	records map[string]StatusRecord
}

func NewTracker(secondsPerLine float64) *Tracker {
	if secondsPerLine < 0 {
		secondsPerLine = 0
	}
	return &Tracker{
		secondsPerLine: secondsPerLine,
		now:            time.Now,
		records:        make(map[string]StatusRecord),
	}
}

// SetPending registers a queued job.
func (t *Tracker) SetPending(id, targetLang string) {
	t.replace(id, func(StatusRecord) StatusRecord {
		return StatusRecord{
			Status:         StatusPending,
			TargetLanguage: targetLang,
		}
	})
}

// Init moves the job to in_progress and seeds the ETA from the per-line prior.
func (t *Tracker) Init(id string, total, dialogueLines int, targetLang string) {
	now := t.now()
	eta := float64(dialogueLines) * t.secondsPerLine
	est := now.Add(seconds(eta))
	t.replace(id, func(prev StatusRecord) StatusRecord {
		return StatusRecord{
			Total:                   total,
			DialogueLines:           dialogueLines,
			Status:                  StatusInProgress,
			TargetLanguage:          targetLang,
			SourceLanguage:          prev.SourceLanguage,
			StartedAt:               &now,
			ETASeconds:              eta,
			EstimatedCompletionTime: &est,
		}
	})
}

// SetSourceLanguage records the detected language of the document
func (t *Tracker) SetSourceLanguage(id, lang string) {
	t.replace(id, func(prev StatusRecord) StatusRecord {
		prev.SourceLanguage = lang
		return prev
	})
}

// Update records per-line progress. Negative ETAs are clamped to zero.
func (t *Tracker) Update(id string, completed int, etaSeconds float64, estimatedCompletion time.Time) {
	if etaSeconds < 0 {
		etaSeconds = 0
	}
	t.replace(id, func(prev StatusRecord) StatusRecord {
		prev.Completed = completed
		prev.ETASeconds = etaSeconds
		prev.EstimatedCompletionTime = &estimatedCompletion
		return prev
	})
}

func (t *Tracker) SetError(id, message string) {
	now := t.now()
	t.replace(id, func(prev StatusRecord) StatusRecord {
		prev.Status = StatusError
		prev.ErrorMessage = message
		prev.QueuePosition = -1
		prev.ETASeconds = 0
		prev.FinishedAt = &now
		return prev
	})
}

func (t *Tracker) SetCompleted(id string) {
	now := t.now()
	t.replace(id, func(prev StatusRecord) StatusRecord {
		prev.Status = StatusCompleted
		prev.QueuePosition = -1
		prev.ETASeconds = 0
		prev.EstimatedCompletionTime = &now
		prev.FinishedAt = &now
		return prev
	})
}

// Get returns a copy of the record, or the not_found sentinel.
func (t *Tracker) Get(id string) StatusRecord {
	t.mu.RLock()
	rec, ok := t.records[id]
	t.mu.RUnlock()
	if !ok {
		return NotFound()
	}
	return rec
}

// Evict drops terminal records that finished before cutoff and returns how many went.
func (t *Tracker) Evict(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for id, rec := range t.records {
		if rec.Status.Terminal() && rec.FinishedAt != nil && rec.FinishedAt.Before(cutoff) {
			delete(t.records, id)
			evicted++
		}
	}
	return evicted
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

func (t *Tracker) replace(id string, fn func(prev StatusRecord) StatusRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[id] = fn(t.records[id])
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
