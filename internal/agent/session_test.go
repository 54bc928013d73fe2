package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/questweaver/questweaver/pkg/provider/llm"
	"github.com/questweaver/questweaver/pkg/provider/llm/mock"
)

func drain(t *testing.T, ch <-chan llm.Chunk) string {
	t.Helper()
	var b strings.Builder
	for c := range ch {
		b.WriteString(c.Text)
	}
	return b.String()
}

func TestSession_CarriesHistoryAcrossSends(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Replies: []string{"first answer", "second answer"}}
	s := NewSession(p, "you are a test")

	ch, err := s.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := drain(t, ch); got != "first answer" {
		t.Errorf("reply = %q", got)
	}

	ch, err = s.Send(context.Background(), "again")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	drain(t, ch)

	// Second request must have carried the first exchange.
	req := p.StreamCalls[1].Req
	if req.SystemPrompt != "you are a test" {
		t.Errorf("system prompt = %q", req.SystemPrompt)
	}
	want := []llm.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "again"},
	}
	if len(req.Messages) != len(want) {
		t.Fatalf("messages = %d, want %d: %+v", len(req.Messages), len(want), req.Messages)
	}
	for i := range want {
		if req.Messages[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, req.Messages[i], want[i])
		}
	}

	hist := s.History()
	if len(hist) != 4 {
		t.Errorf("history = %d entries, want 4", len(hist))
	}
}

func TestSession_AskAndSendShareHistory(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Replies: []string{"spoken", "streamed"}}
	s := NewSession(p, "sys")

	if _, err := s.Ask(context.Background(), "one"); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	ch, err := s.Send(context.Background(), "two")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	drain(t, ch)

	if len(p.StreamCalls[0].Req.Messages) != 3 {
		t.Errorf("stream saw %d messages, want 3 (prior Ask exchange + new)", len(p.StreamCalls[0].Req.Messages))
	}
}

func TestSession_ConcurrentSendsSerialise(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Replies: []string{"a", "b", "c", "d"}}
	s := NewSession(p, "sys")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, err := s.Send(context.Background(), "msg")
			if err != nil {
				t.Errorf("Send: %v", err)
				return
			}
			drain(t, ch)
		}()
	}
	wg.Wait()

	// Every exchange lands in history as a (user, assistant) pair.
	if got := len(s.History()); got != 8 {
		t.Errorf("history = %d entries, want 8", got)
	}
	// Histories never interleave: message counts grow by exactly 2 per call.
	for i, call := range p.StreamCalls {
		if got, want := len(call.Req.Messages), 2*i+1; got != want {
			t.Errorf("call %d saw %d messages, want %d", i, got, want)
		}
	}
}

func TestSession_StreamErrorLeavesHistoryUntouched(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{StreamErr: errors.New("backend down")}
	s := NewSession(p, "sys")

	if _, err := s.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error")
	}
	if len(s.History()) != 0 {
		t.Errorf("failed exchange recorded in history: %+v", s.History())
	}
}
