package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/services"
)

type HistoryHandler struct {
	svc services.HistoryService
}

func NewHistoryHandler(svc services.HistoryService) *HistoryHandler {
	return &HistoryHandler{svc: svc}
}

type HistoryListResponse struct {
	History []models.HistorySummary `json:"history"`
	Total   int                     `json:"total"`
}

type HistoryDetailResponse struct {
	models.HistoryRecord
	ChatAvailable bool `json:"chat_available"`
}

func (h *HistoryHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryListResponse{History: list, Total: len(list)})
}

func (h *HistoryHandler) Get(c *gin.Context) {
	rec, available, err := h.svc.Open(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if rec.ChatHistory == nil {
		rec.ChatHistory = []models.ChatTurn{}
	}
	c.JSON(http.StatusOK, HistoryDetailResponse{HistoryRecord: *rec, ChatAvailable: available})
}

func (h *HistoryHandler) Delete(c *gin.Context) {
	id := c.Param("session_id")
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "session_id": id})
}
