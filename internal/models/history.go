package models

import "time"

type HistoryRecord struct {
	SessionID     string     `bson:"session_id" json:"session_id"`
	Filename      string     `bson:"filename" json:"filename"`
	UploadTime    time.Time  `bson:"upload_time" json:"upload_time"`
	Transcription string     `bson:"transcription" json:"transcription"`
	Summary       string     `bson:"summary" json:"summary"`
	ChatHistory   []ChatTurn `bson:"chat_history" json:"chat_history"`
}

// HistorySummary is the list projection of a HistoryRecord.
type HistorySummary struct {
	SessionID            string    `json:"session_id"`
	Filename             string    `json:"filename"`
	UploadTime           time.Time `json:"upload_time"`
	TranscriptionPreview string    `json:"transcription_preview"`
}
