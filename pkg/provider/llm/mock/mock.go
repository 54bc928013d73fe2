// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that agents send correct
// CompletionRequests and to feed controlled responses without a live LLM
// backend. Scripted responses allow sequencing: each call to Complete or
// StreamCompletion consumes the next scripted reply, so a single mock can
// stand in for a multi-turn conversation.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/questweaver/questweaver/pkg/provider/llm"
)

// StreamCall records a single invocation of StreamCompletion.
type StreamCall struct {
	// Ctx is the context passed to StreamCompletion.
	Ctx context.Context
	// Req is the CompletionRequest passed to StreamCompletion.
	Req llm.CompletionRequest
}

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
//
// Responses are consumed from Replies in order; when Replies is exhausted the
// last entry repeats. An empty Replies slice yields empty responses. Set the
// Err fields to inject failures.
type Provider struct {
	mu sync.Mutex

	// Replies is the scripted sequence of full-text responses. Complete
	// returns the next entry verbatim; StreamCompletion word-streams it.
	Replies []string

	// replyIdx is the index of the next scripted reply.
	replyIdx int

	// StreamErr, if non-nil, is returned from StreamCompletion instead of
	// opening a channel.
	StreamErr error

	// CompleteErr, if non-nil, is returned from Complete.
	CompleteErr error

	// TokenCount is returned by CountTokens.
	TokenCount int

	// StreamCalls records every invocation of StreamCompletion in order.
	StreamCalls []StreamCall

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall
}

var _ llm.Provider = (*Provider)(nil)

// next consumes and returns the next scripted reply. Must be called with mu held.
func (p *Provider) next() string {
	if len(p.Replies) == 0 {
		return ""
	}
	reply := p.Replies[p.replyIdx]
	if p.replyIdx < len(p.Replies)-1 {
		p.replyIdx++
	}
	return reply
}

// StreamCompletion records the call and returns a channel that word-streams
// the next scripted reply, mimicking post-hoc word streaming of a provider
// that is not token-aligned.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, StreamCall{Ctx: ctx, Req: req})
	if p.StreamErr != nil {
		err := p.StreamErr
		p.mu.Unlock()
		return nil, err
	}
	reply := p.next()
	p.mu.Unlock()

	words := strings.SplitAfter(reply, " ")
	ch := make(chan llm.Chunk, len(words)+1)
	go func() {
		defer close(ch)
		for _, w := range words {
			if w == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case ch <- llm.Chunk{Text: w}:
			}
		}
		select {
		case <-ctx.Done():
		case ch <- llm.Chunk{FinishReason: "stop"}:
		}
	}()
	return ch, nil
}

// Complete records the call and returns the next scripted reply.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	if p.CompleteErr != nil {
		return nil, p.CompleteErr
	}
	return &llm.CompletionResponse{Content: p.next()}, nil
}

// CountTokens returns TokenCount.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.TokenCount, nil
}

// Capabilities returns fixed test capabilities.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.ModelCapabilities{
		ContextWindow:     128_000,
		MaxOutputTokens:   4_096,
		SupportsStreaming: true,
	}
}

// Reset clears recorded calls and rewinds the scripted replies.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StreamCalls = nil
	p.CompleteCalls = nil
	p.replyIdx = 0
}
