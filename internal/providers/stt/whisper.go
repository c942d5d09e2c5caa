package stt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type Whisper struct {
	client  *openai.Client
	model   string
	tempDir string
}

func NewWhisper(client *openai.Client, model, tempDir string) *Whisper {
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{client: client, model: model, tempDir: tempDir}
}

func (w *Whisper) Close() error { return nil }

// Transcribe stages the audio in a temp file carrying the original extension,
// since the transcription endpoint sniffs the format from the file name.
// The temp file is removed on every exit path.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("empty audio")
	}
	ext := strings.ToLower(filepath.Ext(filename))

	f, err := os.CreateTemp(w.tempDir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(audio); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
