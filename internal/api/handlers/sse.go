package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoolisten/internal/models"
)

// sseSink writes StreamEvents as `data: {json}` frames. Headers go out with
// the first event, so an error returned before any Send can still become a
// normal JSON error response.
type sseSink struct {
	c       *gin.Context
	mu      sync.Mutex
	started bool
}

func newSSESink(c *gin.Context) *sseSink {
	return &sseSink{c: c}
}

func (s *sseSink) Send(ev models.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.c.Request.Context().Err(); err != nil {
		return err
	}
	if !s.started {
		h := s.c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.c.Status(http.StatusOK)
		s.started = true
	}

	if err := sse.Encode(s.c.Writer, sse.Event{Data: ev}); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

func (s *sseSink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
