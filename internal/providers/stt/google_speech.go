package stt

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/google/uuid"
	"github.com/yoockh/yoolisten/internal/storage"
)

// GoogleInlineLimit is the largest request body Cloud Speech accepts as
// inline content.
const GoogleInlineLimit = 10 << 20

const stagingPrefix = "stt-staging"

var googleEncodings = map[string]speechpb.RecognitionConfig_AudioEncoding{
	".flac": speechpb.RecognitionConfig_FLAC,
	".mp3":  speechpb.RecognitionConfig_MP3,
	".ogg":  speechpb.RecognitionConfig_OGG_OPUS,
	".wav":  speechpb.RecognitionConfig_LINEAR16,
	".webm": speechpb.RecognitionConfig_WEBM_OPUS,
}

// GoogleSpeech runs long-running recognition on Cloud Speech-to-Text.
// With a staging archiver the audio is uploaded to GCS and passed by
// gs:// URI, which lifts the inline size and one-minute duration caps.
// Without one, uploads are capped at GoogleInlineLimit.
type GoogleSpeech struct {
	c         *speech.Client
	recognize func(context.Context, *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
	staging   storage.Archiver
	language  string
}

func NewGoogleSpeech(ctx context.Context, language string, staging storage.Archiver) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	g := newGoogleSpeech(language, staging, func(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := c.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	g.c = c
	return g, nil
}

func newGoogleSpeech(language string, staging storage.Archiver,
	recognize func(context.Context, *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error),
) *GoogleSpeech {
	if language == "" {
		language = "en-US"
	}
	return &GoogleSpeech{recognize: recognize, staging: staging, language: language}
}

func (g *GoogleSpeech) Close() error {
	if g.c == nil {
		return nil
	}
	return g.c.Close()
}

// UploadLimits narrows an upload policy to what this backend can decode:
// extensions without a Cloud Speech encoding are dropped and, without
// staging, maxBytes is clamped to the inline limit.
func (g *GoogleSpeech) UploadLimits(allowed []string, maxBytes int64) ([]string, int64) {
	out := make([]string, 0, len(allowed))
	for _, ext := range allowed {
		if _, ok := encodingFor(ext); ok {
			out = append(out, ext)
		}
	}
	if g.staging == nil && (maxBytes <= 0 || maxBytes > GoogleInlineLimit) {
		maxBytes = GoogleInlineLimit
	}
	return out, maxBytes
}

func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	enc, ok := encodingFor(filename)
	if !ok {
		return "", fmt.Errorf("google speech: unsupported audio format %q", filepath.Ext(filename))
	}
	if g.staging == nil && len(audio) > GoogleInlineLimit {
		return "", fmt.Errorf("google speech: %d bytes exceeds the %dMB inline limit and no staging bucket is configured",
			len(audio), GoogleInlineLimit>>20)
	}

	cfg := &speechpb.RecognitionConfig{
		Encoding:                   enc,
		LanguageCode:               g.language,
		EnableAutomaticPunctuation: true,
	}
	if enc == speechpb.RecognitionConfig_MP3 {
		if rate, ok := mp3SampleRate(audio); ok {
			cfg.SampleRateHertz = rate
		}
	}

	audioSrc, err := g.audioSource(ctx, audio, filename)
	if err != nil {
		return "", err
	}

	resp, err := g.recognize(ctx, &speechpb.LongRunningRecognizeRequest{Config: cfg, Audio: audioSrc})
	if err != nil {
		return "", err
	}

	// results are consecutive segments; take the top alternative of each
	parts := make([]string, 0, len(resp.GetResults()))
	for _, r := range resp.GetResults() {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

func (g *GoogleSpeech) audioSource(ctx context.Context, audio []byte, filename string) (*speechpb.RecognitionAudio, error) {
	if g.staging == nil {
		return &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		}, nil
	}
	name := storage.ObjectName(stagingPrefix, uuid.NewString(), filename, time.Now())
	uri, err := g.staging.Archive(ctx, name, "", bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("google speech: stage audio: %w", err)
	}
	return &speechpb.RecognitionAudio{
		AudioSource: &speechpb.RecognitionAudio_Uri{Uri: uri},
	}, nil
}

func encodingFor(filename string) (speechpb.RecognitionConfig_AudioEncoding, bool) {
	enc, ok := googleEncodings[strings.ToLower(filepath.Ext(filename))]
	return enc, ok
}

var mp3Rates = map[byte][3]int32{
	3: {44100, 48000, 32000}, // MPEG-1
	2: {22050, 24000, 16000}, // MPEG-2
	0: {11025, 12000, 8000},  // MPEG-2.5
}

// mp3SampleRate reads the rate from the first MPEG audio frame header,
// skipping a leading ID3v2 tag. Cloud Speech requires it for MP3.
func mp3SampleRate(b []byte) (int32, bool) {
	i := 0
	if len(b) >= 10 && string(b[:3]) == "ID3" {
		size := int(b[6]&0x7f)<<21 | int(b[7]&0x7f)<<14 | int(b[8]&0x7f)<<7 | int(b[9]&0x7f)
		i = 10 + size
		if b[5]&0x10 != 0 {
			i += 10
		}
	}
	for ; i+2 < len(b); i++ {
		if b[i] != 0xff || b[i+1]&0xe0 != 0xe0 {
			continue
		}
		version := (b[i+1] >> 3) & 0x03
		layer := (b[i+1] >> 1) & 0x03
		rateIdx := (b[i+2] >> 2) & 0x03
		rates, ok := mp3Rates[version]
		if !ok || layer == 0 || rateIdx == 3 || b[i+2]>>4 == 0x0f {
			continue
		}
		return rates[rateIdx], true
	}
	return 0, false
}
