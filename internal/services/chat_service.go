package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/providers/llm"
	"github.com/yoockh/yoolisten/internal/streaming"
	"github.com/yoockh/yoolisten/internal/utils"
)

const (
	ContextChunks   = 3
	HistoryMessages = 6
	ChatTemperature = 0.7
)

const chatSystemPrompt = `You are a helpful assistant answering questions about an audio transcript.
Answer using the transcript excerpts below. If they do not contain the answer, say so.

Transcript excerpts:
`

type ChatService interface {
	// Chat answers message against the session's transcript and streams the
	// reply into sink. A returned error means nothing was written to sink;
	// failures after the first event are reported in-band.
	Chat(ctx context.Context, sessionID, message string, sink streaming.Sink) error
}

type chatService struct {
	sessions    SessionStore
	history     HistoryService
	llm         llm.Provider
	streamDelay time.Duration
	log         *logrus.Logger
}

func NewChatService(sessions SessionStore, history HistoryService, provider llm.Provider, streamDelay time.Duration, log *logrus.Logger) ChatService {
	return &chatService{
		sessions:    sessions,
		history:     history,
		llm:         provider,
		streamDelay: streamDelay,
		log:         log,
	}
}

func (s *chatService) Chat(ctx context.Context, sessionID, message string, sink streaming.Sink) error {
	const op = "ChatService.Chat"

	message = strings.TrimSpace(message)
	if sessionID == "" || message == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and message are required", nil)
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}

	log := s.log.WithField("session_id", sessionID)
	if streaming.Emit(sink, models.Status("Searching the transcript...")) != nil {
		return nil
	}

	fail := func(msg string, err error) error {
		log.WithError(err).Error(msg)
		_ = streaming.Emit(sink, models.ErrorEvent(utils.PublicMessage(utils.E(utils.CodeUpstream, op, msg, err))))
		return nil
	}

	if sess.Index == nil {
		return fail("chat is unavailable for this session", errors.New("no retrieval index"))
	}
	chunks, err := sess.Index.Search(ctx, message, ContextChunks)
	if err != nil {
		return fail("retrieval failed", err)
	}

	msgs := buildChatPrompt(strings.Join(chunks, "\n\n"), sess.LastTurns(HistoryMessages), message)
	reply, err := s.llm.Complete(ctx, msgs, llm.Options{Temperature: ChatTemperature})
	if err != nil {
		return fail("chat completion failed", err)
	}

	streamErr := streaming.Simulate(ctx, sink, models.EventChatChunk, reply, s.streamDelay)
	if streamErr != nil {
		log.WithError(streamErr).Info("chat: client went away while streaming")
	}

	// the turn is recorded even if the client left mid-stream
	pctx := context.WithoutCancel(ctx)
	chat, err := s.sessions.AppendTurns(sessionID,
		models.ChatTurn{Role: models.RoleUser, Content: message},
		models.ChatTurn{Role: models.RoleAssistant, Content: reply},
	)
	if err != nil {
		log.WithError(err).Error("chat: session vanished before persisting")
		if streamErr == nil {
			_ = streaming.Emit(sink, models.ErrorEvent(utils.PublicMessage(err)))
		}
		return nil
	}

	if found, err := s.history.SyncChat(pctx, sessionID, chat); err != nil {
		log.WithError(err).Warn("chat: history mirror failed")
		if streamErr == nil {
			if streaming.Emit(sink, models.Warning("Reply saved to the session but history could not be updated")) != nil {
				return nil
			}
		}
	} else if !found {
		log.Debug("chat: no history record to mirror into")
	}

	if streamErr == nil {
		_ = streaming.Emit(sink, models.StreamEvent{Type: models.EventComplete, SessionID: sessionID})
	}
	return nil
}

func buildChatPrompt(contextText string, recent []models.ChatTurn, message string) []llm.Message {
	msgs := make([]llm.Message, 0, len(recent)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: chatSystemPrompt + contextText})
	for _, t := range recent {
		role := llm.RoleUser
		if t.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
}
