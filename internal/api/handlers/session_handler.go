package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/services"
	"github.com/yoockh/yoolisten/internal/utils"
)

type SessionHandler struct {
	sessions services.SessionStore
}

func NewSessionHandler(sessions services.SessionStore) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type SessionResponse struct {
	SessionID            string            `json:"session_id"`
	TranscriptionLength  int               `json:"transcription_length"`
	TranscriptionPreview string            `json:"transcription_preview"`
	ChatHistory          []models.ChatTurn `json:"chat_history"`
	ChatHistoryCount     int               `json:"chat_history_count"`
	CreatedAt            time.Time         `json:"created_at"`
	LastAccess           time.Time         `json:"last_access"`
}

func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	turns := sess.Turns()
	c.JSON(http.StatusOK, SessionResponse{
		SessionID:            sess.ID,
		TranscriptionLength:  len([]rune(sess.Transcript)),
		TranscriptionPreview: utils.Preview(sess.Transcript, services.PreviewLength),
		ChatHistory:          turns,
		ChatHistoryCount:     len(turns),
		CreatedAt:            sess.CreatedAt,
		LastAccess:           sess.LastAccess(),
	})
}

type sessionDetail struct {
	TranscriptionLength int       `json:"transcription_length"`
	ChatHistoryCount    int       `json:"chat_history_count"`
	CreatedAt           time.Time `json:"created_at"`
	LastAccess          time.Time `json:"last_access"`
}

// Debug dumps every live session.
func (h *SessionHandler) Debug(c *gin.Context) {
	all := h.sessions.List()

	ids := make([]string, 0, len(all))
	detail := make(map[string]sessionDetail, len(all))
	for _, s := range all {
		ids = append(ids, s.ID)
		detail[s.ID] = sessionDetail{
			TranscriptionLength: len([]rune(s.Transcript)),
			ChatHistoryCount:    s.TurnCount(),
			CreatedAt:           s.CreatedAt,
			LastAccess:          s.LastAccess(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"active_sessions": len(all),
		"session_ids":     ids,
		"sessions_detail": detail,
	})
}
