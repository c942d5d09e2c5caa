package llm

import (
	"context"
	"errors"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &VertexGemini{client: c, modelName: modelName}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

// chat maps the messages onto a chat session: system messages become the
// system instruction, the trailing user message is returned to be sent.
func (v *VertexGemini) chat(msgs []Message, opts Options) (*vertexgenai.ChatSession, vertexgenai.Part, error) {
	m := v.client.GenerativeModel(v.modelName)
	m.SetTemperature(opts.Temperature)
	if opts.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(opts.MaxTokens))
	}

	var system []string
	var history []*vertexgenai.Content
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleAssistant:
			history = append(history, &vertexgenai.Content{Role: "model", Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)}})
		default:
			history = append(history, &vertexgenai.Content{Role: "user", Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)}})
		}
	}
	if len(system) > 0 {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(strings.Join(system, "\n\n"))}}
	}
	if len(history) == 0 || history[len(history)-1].Role != "user" {
		return nil, nil, errors.New("last message must come from the user")
	}

	last := history[len(history)-1]
	cs := m.StartChat()
	cs.History = history[:len(history)-1]
	return cs, last.Parts[0], nil
}

func (v *VertexGemini) Complete(ctx context.Context, msgs []Message, opts Options) (string, error) {
	cs, prompt, err := v.chat(msgs, opts)
	if err != nil {
		return "", err
	}
	resp, err := cs.SendMessage(ctx, prompt)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	return sb.String(), nil
}

func (v *VertexGemini) StreamAnswer(ctx context.Context, msgs []Message, opts Options) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		cs, prompt, err := v.chat(msgs, opts)
		if err != nil {
			errs <- err
			return
		}

		it := cs.SendMessageStream(ctx, prompt)
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				errs <- err
				return
			}

			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if t, ok := part.(vertexgenai.Text); ok && string(t) != "" {
						select {
						case out <- string(t):
						case <-ctx.Done():
							errs <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return out, errs
}
