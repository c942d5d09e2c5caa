package models

type EventType string

const (
	EventStatus         EventType = "status"
	EventTranscription  EventType = "transcription"
	EventSummaryChunk   EventType = "summary_chunk"
	EventSessionCreated EventType = "session_created"
	EventWarning        EventType = "warning"
	EventComplete       EventType = "complete"
	EventError          EventType = "error"
	EventChatChunk      EventType = "chat_chunk"
)

// StreamEvent is one frame written to an SSE or WebSocket client.
type StreamEvent struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	Content   string    `json:"content,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Filename  string    `json:"filename,omitempty"`
}

func Status(msg string) StreamEvent  { return StreamEvent{Type: EventStatus, Message: msg} }
func Warning(msg string) StreamEvent { return StreamEvent{Type: EventWarning, Message: msg} }
func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{Type: EventError, Message: msg}
}
