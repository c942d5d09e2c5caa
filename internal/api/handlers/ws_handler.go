package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/services"
	"github.com/yoockh/yoolisten/internal/streaming"
	"github.com/yoockh/yoolisten/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WSHandler runs the chat flow over a WebSocket, one turn per client frame.
type WSHandler struct {
	sessions services.SessionStore
	chat     services.ChatService
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions services.SessionStore, chat services.ChatService, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		chat:     chat,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type wsClientMsg struct {
	Type    string `json:"type"` // chat|ping
	Message string `json:"message"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.c.WriteJSON(v)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (h *WSHandler) ChatWS(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.ChatWS", "missing session_id", nil))
		return
	}
	if _, err := h.sessions.Get(sessionID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	log := h.log.WithField("session_id", sessionID)

	go func() {
		t := time.NewTicker(wsPingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := wc.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
	sink := streaming.SinkFunc(func(ev models.StreamEvent) error { return wc.writeJSON(ev) })

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Debug("ws: read loop ended")
			return
		}

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = wc.writeJSON(models.ErrorEvent("invalid json"))
			continue
		}

		switch msg.Type {
		case "chat":
			if err := h.chat.Chat(ctx, sessionID, msg.Message, sink); err != nil {
				if werr := wc.writeJSON(models.ErrorEvent(utils.PublicMessage(err))); werr != nil {
					return
				}
				if utils.IsCode(err, utils.CodeNotFound) {
					return
				}
			}
		case "ping":
			_ = wc.writeJSON(models.Status("pong"))
		default:
			_ = wc.writeJSON(models.ErrorEvent("unknown message type"))
		}
	}
}
