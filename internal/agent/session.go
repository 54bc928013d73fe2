// Package agent layers conversational sessions and the specialised game
// agents (intent analysis, narration, content generation, planning
// perspectives) on top of the llm.Provider abstraction.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/questweaver/questweaver/pkg/provider/llm"
)

// Session is one stateful conversation: a fixed system directive plus the
// alternating user/assistant history accumulated across calls. A mutex
// serialises exchanges so concurrent callers cannot interleave histories.
type Session struct {
	provider llm.Provider

	mu      sync.Mutex
	system  string
	history []llm.Message

	temperature float64
	maxTokens   int
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithTemperature sets the sampling temperature for all exchanges.
func WithTemperature(t float64) SessionOption {
	return func(s *Session) { s.temperature = t }
}

// WithMaxTokens caps completion length per exchange.
func WithMaxTokens(n int) SessionOption {
	return func(s *Session) { s.maxTokens = n }
}

// NewSession starts a session with the given system directive.
func NewSession(p llm.Provider, systemPrompt string, opts ...SessionOption) *Session {
	s := &Session{
		provider:    p,
		system:      systemPrompt,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send streams the model's reply to one user message. The session lock is
// held until the stream finishes, so the history the next call sees always
// contains this exchange in full. Callers must drain the channel.
func (s *Session) Send(ctx context.Context, userMessage string) (<-chan llm.Chunk, error) {
	s.mu.Lock()

	messages := append(s.cloneHistory(), llm.Message{Role: "user", Content: userMessage})
	stream, err := s.provider.StreamCompletion(ctx, llm.CompletionRequest{
		Messages:     messages,
		SystemPrompt: s.system,
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
	})
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("agent: start stream: %w", err)
	}

	out := make(chan llm.Chunk)
	go func() {
		defer s.mu.Unlock()
		defer close(out)

		var reply strings.Builder
		failed := false
		for chunk := range stream {
			if chunk.FinishReason == "error" {
				failed = true
			} else {
				reply.WriteString(chunk.Text)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				// Cancelled mid-stream: drop the partial exchange.
				return
			}
		}
		if failed {
			return
		}
		s.history = append(s.history,
			llm.Message{Role: "user", Content: userMessage},
			llm.Message{Role: "assistant", Content: reply.String()},
		)
	}()
	return out, nil
}

// Ask is the non-streaming form of Send.
func (s *Session) Ask(ctx context.Context, userMessage string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := append(s.cloneHistory(), llm.Message{Role: "user", Content: userMessage})
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Messages:     messages,
		SystemPrompt: s.system,
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("agent: complete: %w", err)
	}
	s.history = append(s.history,
		llm.Message{Role: "user", Content: userMessage},
		llm.Message{Role: "assistant", Content: resp.Content},
	)
	return resp.Content, nil
}

// History returns a copy of the conversation so far, excluding the system
// directive.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloneHistory()
}

func (s *Session) cloneHistory() []llm.Message {
	out := make([]llm.Message, len(s.history), len(s.history)+1)
	copy(out, s.history)
	return out
}
