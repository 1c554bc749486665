package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MimeLyc/nottranslate-api/internal/jobs"
)

const statusEvent = "status"

// handleStatusStream pushes the status record of one job until it is terminal or unknown.
func (s *Server) handleStatusStream(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	send := func() bool {
		rec := s.queue.Status(ctx, id)
		c.SSEvent(statusEvent, rec)
		c.Writer.Flush()
		return !rec.Status.Terminal() && rec.Status != jobs.StatusNotFound
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
