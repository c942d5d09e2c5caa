package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Options struct {
	Temperature float32
	MaxTokens   int
}

type Provider interface {
	// StreamAnswer returns a stream of text chunks (incremental). errs receives
	// at most one error and both channels are closed when generation ends.
	StreamAnswer(ctx context.Context, msgs []Message, opts Options) (chunks <-chan string, errs <-chan error)
	// Complete returns the whole reply in one call.
	Complete(ctx context.Context, msgs []Message, opts Options) (string, error)
	Close() error
}
