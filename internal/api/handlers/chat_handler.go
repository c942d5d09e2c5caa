package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoolisten/internal/services"
	"github.com/yoockh/yoolisten/internal/utils"
)

type ChatHandler struct {
	svc services.ChatService
}

func NewChatHandler(svc services.ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Chat", "invalid request body: session_id and message are required", err))
		return
	}

	sink := newSSESink(c)
	if err := h.svc.Chat(c.Request.Context(), req.SessionID, req.Message, sink); err != nil && !sink.Started() {
		writeError(c, err)
	}
}
