package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const TranscriptTTL = 24 * time.Hour

// TranscriptCache remembers transcripts by audio content so a re-upload of
// the same file skips the speech-to-text call.
type TranscriptCache interface {
	Lookup(ctx context.Context, audio []byte) (text string, hit bool, err error)
	Store(ctx context.Context, audio []byte, text string) error
}

func TranscriptKey(audio []byte) string {
	sum := sha256.Sum256(audio)
	return "transcript:" + hex.EncodeToString(sum[:])
}
