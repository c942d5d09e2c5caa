package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/yoockh/yoolisten/internal/logger"
	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/providers/llm"
	"github.com/yoockh/yoolisten/internal/repositories"
	filerepo "github.com/yoockh/yoolisten/internal/repositories/file"
	"github.com/yoockh/yoolisten/internal/retrieval"
)

type fakeIndex struct {
	chunks   []string
	err      error
	released chan struct{}
}

func (f *fakeIndex) Search(_ context.Context, _ string, k int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.chunks) {
		return f.chunks[:k], nil
	}
	return f.chunks, nil
}

func (f *fakeIndex) Release(context.Context) error {
	if f.released != nil {
		close(f.released)
	}
	return nil
}

type fakeBuilder struct {
	mu      sync.Mutex
	err     error
	chunks  []string
	indexes []*fakeIndex
}

func (b *fakeBuilder) Build(_ context.Context, _ string, _ string) (retrieval.Index, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	idx := &fakeIndex{chunks: b.chunks, released: make(chan struct{})}
	b.indexes = append(b.indexes, idx)
	return idx, nil
}

type fakeLLM struct {
	mu            sync.Mutex
	reply         string
	completeErr   error
	completeCalls int
	lastMsgs      []llm.Message
	lastOpts      llm.Options

	streamChunks []string
	streamErr    error
}

func (f *fakeLLM) Complete(_ context.Context, msgs []llm.Message, opts llm.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.lastMsgs = msgs
	f.lastOpts = opts
	return f.reply, f.completeErr
}

func (f *fakeLLM) StreamAnswer(_ context.Context, msgs []llm.Message, opts llm.Options) (<-chan string, <-chan error) {
	f.mu.Lock()
	f.lastMsgs = msgs
	f.lastOpts = opts
	f.mu.Unlock()

	out := make(chan string, len(f.streamChunks))
	errs := make(chan error, 1)
	for _, c := range f.streamChunks {
		out <- c
	}
	if f.streamErr != nil {
		errs <- f.streamErr
	}
	close(out)
	close(errs)
	return out, errs
}

func (f *fakeLLM) Close() error { return nil }

type fakeSTT struct {
	text  string
	err   error
	calls int
}

func (f *fakeSTT) Transcribe(context.Context, []byte, string) (string, error) {
	f.calls++
	return f.text, f.err
}

func (f *fakeSTT) Close() error { return nil }

type recSink struct {
	mu     sync.Mutex
	events []models.StreamEvent
}

func (r *recSink) Send(ev models.StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recSink) types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recSink) first(t models.EventType) (models.StreamEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == t {
			return ev, true
		}
	}
	return models.StreamEvent{}, false
}

// brokenHistoryRepo fails every write.
type brokenHistoryRepo struct {
	repositories.HistoryRepository
}

var errDiskFull = errors.New("disk full")

func (brokenHistoryRepo) Append(context.Context, models.HistoryRecord) error { return errDiskFull }
func (brokenHistoryRepo) UpdateChatLog(context.Context, string, []models.ChatTurn) (bool, error) {
	return false, errDiskFull
}

func newFileHistory(t *testing.T) repositories.HistoryRepository {
	t.Helper()
	return filerepo.NewHistoryRepo(filepath.Join(t.TempDir(), "history.json"), logger.Discard())
}

func newStore(b retrieval.Builder, ttl time.Duration) SessionStore {
	return NewSessionStore(b, ttl, 0, logger.Discard())
}

// rowBuilder keeps chunk rows in one table keyed by namespace, the way the
// pgvector and milvus backends do.
type rowBuilder struct {
	mu     sync.Mutex
	rows   map[string][]string
	delay  time.Duration
	builds int
}

func newRowBuilder(delay time.Duration) *rowBuilder {
	return &rowBuilder{rows: map[string][]string{}, delay: delay}
}

func (b *rowBuilder) Build(_ context.Context, namespace, transcript string) (retrieval.Index, error) {
	time.Sleep(b.delay)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.builds++
	b.rows[namespace] = append(b.rows[namespace], transcript)
	return &rowIndex{b: b, namespace: namespace}, nil
}

func (b *rowBuilder) namespaces() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows)
}

func (b *rowBuilder) buildCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds
}

type rowIndex struct {
	b         *rowBuilder
	namespace string
}

func (r *rowIndex) Search(_ context.Context, _ string, k int) ([]string, error) {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	rows := r.b.rows[r.namespace]
	if k < len(rows) {
		rows = rows[:k]
	}
	return append([]string(nil), rows...), nil
}

func (r *rowIndex) Release(context.Context) error {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	delete(r.b.rows, r.namespace)
	return nil
}
