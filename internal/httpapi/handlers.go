package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MimeLyc/nottranslate-api/internal/jobs"
	"github.com/MimeLyc/nottranslate-api/internal/persistence"
	"github.com/MimeLyc/nottranslate-api/internal/storage"
	"github.com/MimeLyc/nottranslate-api/internal/subtitle"
	"github.com/MimeLyc/nottranslate-api/internal/translator"
	"github.com/MimeLyc/nottranslate-api/pkg/log"
)

// multipart overhead allowed on top of the file size limit
const formOverhead = 1 << 20

type translateResponse struct {
	FileID         string `json:"file_id"`
	Status         string `json:"status"`
	TargetLanguage string `json:"target_language"`
	QueuePosition  int    `json:"queue_position"`
}

type feedbackRequest struct {
	OriginalText     string  `json:"original_text" binding:"required"`
	TranslatedText   string  `json:"translated_text" binding:"required"`
	CorrectedText    *string `json:"corrected_text"`
	OriginalLanguage string  `json:"original_language" binding:"required"`
	TargetLanguage   string  `json:"target_language" binding:"required"`
	Rating           int     `json:"rating"`
	FileID           *string `json:"file_id"`
}

type subtitlePair struct {
	ID         int    `json:"id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Original   string `json:"original"`
	Translated string `json:"translated"`
}

type statsResponse struct {
	FilesCount         int      `json:"files_count"`
	FeedbackCount      int      `json:"feedback_count"`
	AvailableLanguages []string `json:"available_languages"`
	LoadedLanguages    []string `json:"loaded_languages"`
	QueueLength        int      `json:"queue_length"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.db.Ping(c.Request.Context()); err != nil {
		log.Warn("Health check: database unavailable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, translator.Codes())
}

func (s *Server) handleTranslate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes+formOverhead)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(c, http.StatusBadRequest, "Expected a multipart form with file and target_lang")
		return
	}

	var targetLang string
	if v := form.Value["target_lang"]; len(v) > 0 {
		targetLang = v[0]
	}
	pair, err := translator.ParsePair(targetLang)
	if err != nil {
		writeError(c, http.StatusBadRequest, fmt.Sprintf(
			"Unsupported target language. Available languages: %s", strings.Join(translator.Codes(), ", ")))
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		writeError(c, http.StatusBadRequest, "Missing file")
		return
	}
	header := files[0]
	if !strings.EqualFold(filepath.Ext(header.Filename), ".ass") {
		writeError(c, http.StatusBadRequest, "Only .ass subtitle files are supported")
		return
	}
	if header.Size > s.maxUploadBytes {
		writeError(c, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	src, err := header.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	defer src.Close()

	ctx := c.Request.Context()
	id := uuid.New().String()
	key := storage.SourceKey(id)
	if err := s.storage.Upload(ctx, key, src, header.Size, storage.SubtitleContentType); err != nil {
		log.Error("Failed to store upload %s: %v", id, err)
		writeError(c, http.StatusInternalServerError, "Failed to store file")
		return
	}

	now := time.Now()
	if err := s.db.SaveFile(ctx, persistence.FileRecord{ID: id, TargetLanguage: pair.Code, CreatedAt: now}); err != nil {
		log.Error("Failed to record file %s: %v", id, err)
		_ = s.storage.Delete(ctx, key)
		writeError(c, http.StatusInternalServerError, "Failed to store file")
		return
	}

	pos := s.queue.Enqueue(jobs.Job{ID: id, SourceKey: key, TargetLang: pair.Code, SubmittedAt: now})
	log.With(log.Fields{log.FieldJobID: id, log.FieldTargetLang: pair.Code}).Info("Queued %s at position %d", header.Filename, pos)

	c.JSON(http.StatusOK, translateResponse{
		FileID:         id,
		Status:         "queued",
		TargetLanguage: pair.Code,
		QueuePosition:  pos,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.queue.Status(c.Request.Context(), c.Param("id")))
}

func (s *Server) handleFile(c *gin.Context) {
	id := c.Param("id")
	rec, ok, err := s.db.GetFile(c.Request.Context(), id)
	if err != nil {
		log.Warn("Failed to look up file %s: %v", id, err)
	} else if ok && rec.Deleted {
		writeError(c, http.StatusNotFound, "File expired")
		return
	}

	rc, err := s.storage.Download(c.Request.Context(), storage.ResultKey(id))
	if err != nil {
		s.storageError(c, id, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", rc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s.ass"`, id),
	})
}

func (s *Server) handleContent(c *gin.Context) {
	id := c.Param("id")
	original, err := s.readDocument(c, storage.SourceKey(id))
	if err != nil {
		s.storageError(c, id, err)
		return
	}
	translated, err := s.readDocument(c, storage.ResultKey(id))
	if err != nil {
		s.storageError(c, id, err)
		return
	}

	originals, translations := original.Cues(), translated.Cues()
	n := min(len(originals), len(translations))
	pairs := make([]subtitlePair, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, subtitlePair{
			ID:         i,
			StartTime:  originals[i].StartTime,
			EndTime:    originals[i].EndTime,
			Original:   originals[i].Text,
			Translated: translations[i].Text,
		})
	}
	c.JSON(http.StatusOK, gin.H{"subtitles": pairs})
}

func (s *Server) readDocument(c *gin.Context, key string) (*subtitle.Document, error) {
	data, err := storage.ReadAll(c.Request.Context(), s.storage, key)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return subtitle.Parse(string(data)), nil
}

func (s *Server) storageError(c *gin.Context, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(c, http.StatusNotFound, "File not found")
		return
	}
	log.Error("Failed to read %s: %v", id, err)
	writeError(c, http.StatusInternalServerError, "Error processing file content")
}

func (s *Server) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(c, http.StatusBadRequest, "Rating must be between 1 and 5")
		return
	}

	fb := persistence.Feedback{
		FileID:           uuid.New().String(),
		OriginalText:     req.OriginalText,
		TranslatedText:   req.TranslatedText,
		OriginalLanguage: req.OriginalLanguage,
		TargetLanguage:   req.TargetLanguage,
		Rating:           req.Rating,
		CreatedAt:        time.Now(),
	}
	if req.FileID != nil && *req.FileID != "" {
		fb.FileID = *req.FileID
	}
	if req.CorrectedText != nil {
		fb.CorrectedText = *req.CorrectedText
	}

	if _, err := s.db.SaveFeedback(c.Request.Context(), fb); err != nil {
		log.Error("Failed to save feedback: %v", err)
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Feedback saved successfully"})
}

func (s *Server) handleListFeedback(c *gin.Context) {
	items, err := s.db.ListFeedback(c.Request.Context(), c.Param("file_id"))
	if err != nil {
		log.Error("Failed to list feedback: %v", err)
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": items})
}

func (s *Server) handleStats(c *gin.Context) {
	ctx := c.Request.Context()
	files, err := s.db.CountFiles(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, fmt.Sprintf("Error fetching stats: %v", err))
		return
	}
	feedback, err := s.db.CountFeedback(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, fmt.Sprintf("Error fetching stats: %v", err))
		return
	}
	loaded := []string{}
	if s.providers != nil {
		loaded = s.providers.Loaded()
	}
	c.JSON(http.StatusOK, statsResponse{
		FilesCount:         files,
		FeedbackCount:      feedback,
		AvailableLanguages: translator.Codes(),
		LoadedLanguages:    loaded,
		QueueLength:        s.queue.Len(),
	})
}
