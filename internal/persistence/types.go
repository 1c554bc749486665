package persistence

import "time"

// FileRecord indexes an uploaded document and its lifecycle flags
type FileRecord struct {
	ID             string
	TargetLanguage string
	CreatedAt      time.Time
	Translated     bool
	Deleted        bool
}

// Feedback is a user rating of a translated line
type Feedback struct {
	ID               int64     `json:"id"`
	FileID           string    `json:"file_id"`
	OriginalText     string    `json:"original_text"`
	TranslatedText   string    `json:"translated_text"`
	CorrectedText    string    `json:"corrected_text,omitempty"`
	OriginalLanguage string    `json:"original_language"`
	TargetLanguage   string    `json:"target_language"`
	Rating           int       `json:"rating"`
	CreatedAt        time.Time `json:"created_at"`
}
