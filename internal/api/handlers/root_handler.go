package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "yoolisten",
		"version":     Version,
		"description": "Audio transcription, streaming summaries and chat over transcripts",
		"endpoints": gin.H{
			"process":              "POST /process",
			"process_with_summary": "POST /process-with-summary",
			"chat":                 "POST /chat",
			"chat_ws":              "GET /ws/chat/:session_id",
			"session":              "GET /session/:session_id",
			"history":              "GET /api/history",
			"history_detail":       "GET /api/history/:session_id",
			"history_delete":       "DELETE /api/history/:session_id",
			"debug_sessions":       "GET /debug/sessions",
		},
	})
}
