package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MimeLyc/nottranslate-api/pkg/log"
)

const (
	headerRequestID = "X-Request-ID"
	headerAPIKey    = "X-API-Key"
)

func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("Panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		writeError(c, http.StatusInternalServerError, "internal server error")
	})
}

// requestLogger tags every request with an id, echoed in X-Request-ID, and logs its outcome.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(headerRequestID, requestID)
		c.Set("request_id", requestID)

		c.Next()

		log.With(log.Fields{
			log.FieldRequestID:  requestID,
			log.FieldComponent:  "http",
			log.FieldStatus:     c.Writer.Status(),
			log.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Info("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

// cors allows any origin
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With, X-API-Key")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		h.Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.validator == nil {
			c.Next()
			return
		}
		key := c.GetHeader(headerAPIKey)
		if key == "" {
			abortError(c, http.StatusUnauthorized, "Invalid API Key")
			return
		}
		ok, err := s.validator.Validate(c.Request.Context(), key)
		if err != nil {
			log.Warn("API key validation failed: %v", err)
		}
		if !ok {
			abortError(c, http.StatusUnauthorized, "Invalid API Key")
			return
		}
		c.Next()
	}
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}
