package stt

import "context"

// Provider turns raw audio bytes into text. filename carries the original
// extension so the backend can infer the container format.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	Close() error
}
