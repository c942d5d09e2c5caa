// Package streaming delivers generated text to a client incrementally.
//
// Relay forwards provider deltas as they arrive. Simulate takes a finished
// reply and replays it token by token.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yoockh/yoolisten/internal/models"
)

// ErrClientGone wraps sink write failures. Nothing more can be sent.
var ErrClientGone = errors.New("client disconnected")

type Sink interface {
	Send(ev models.StreamEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev models.StreamEvent) error

func (f SinkFunc) Send(ev models.StreamEvent) error { return f(ev) }

// Emit sends ev and tags a failure as ErrClientGone.
func Emit(sink Sink, ev models.StreamEvent) error {
	if err := sink.Send(ev); err != nil {
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	return nil
}

// Relay writes every chunk as an event of type t and returns the accumulated
// text. It stops on context cancellation, a sink failure or a provider error.
func Relay(ctx context.Context, sink Sink, t models.EventType, chunks <-chan string, errs <-chan error, delay time.Duration) (string, error) {
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if err, ok := <-errs; ok && err != nil {
					return sb.String(), err
				}
				return sb.String(), nil
			}
			sb.WriteString(chunk)
			if err := Emit(sink, models.StreamEvent{Type: t, Content: chunk}); err != nil {
				return sb.String(), err
			}
			if err := pause(ctx, delay); err != nil {
				return sb.String(), err
			}
		}
	}
}

// Simulate splits text on whitespace and writes one event per token,
// each followed by a single space, pausing delay between tokens.
func Simulate(ctx context.Context, sink Sink, t models.EventType, text string, delay time.Duration) error {
	for i, tok := range strings.Fields(text) {
		if i > 0 {
			if err := pause(ctx, delay); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := Emit(sink, models.StreamEvent{Type: t, Content: tok + " "}); err != nil {
			return err
		}
	}
	return nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
