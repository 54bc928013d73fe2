package openai

import (
	"context"
	"testing"
	"time"

	"github.com/questweaver/questweaver/pkg/provider/llm"
)

// ── Constructor ───────────────────────────────────────────────────────────────

// TestNew_MissingAPIKey ensures the constructor rejects an empty API key.
func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("", "gpt-4o")
	if err == nil {
		t.Fatal("expected error for empty API key")
	}
}

// TestNew_MissingModel ensures the constructor rejects an empty model.
func TestNew_MissingModel(t *testing.T) {
	_, err := New("sk-test", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_Options checks that optional settings are accepted without error.
func TestNew_Options(t *testing.T) {
	_, err := New("sk-test", "gpt-4o",
		WithBaseURL("https://custom.example.com"),
		WithOrganization("org-123"),
		WithTimeout(30*time.Second),
	)
	if err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_SystemPromptFirst checks that a system prompt becomes the
// leading system message.
func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are the narrator.",
		Messages:     []llm.Message{{Role: "user", Content: "I open the door."}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected leading system message")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("expected user message second")
	}
}

// TestBuildParams_Assistant checks assistant message conversion with a name.
func TestBuildParams_Assistant(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "assistant", Content: "Hi there!", Name: "narrator"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params.Messages) != 1 || params.Messages[0].OfAssistant == nil {
		t.Fatal("expected one assistant message")
	}
	asst := params.Messages[0].OfAssistant
	if asst.Content.OfString.Value != "Hi there!" {
		t.Errorf("unexpected content: %q", asst.Content.OfString.Value)
	}
	if asst.Name.Value != "narrator" {
		t.Errorf("unexpected name: %q", asst.Name.Value)
	}
}

// TestBuildParams_UnknownRole checks that unknown roles return an error.
func TestBuildParams_UnknownRole(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	_, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "wizard", Content: "abracadabra"}},
	})
	if err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

// TestBuildParams_Sampling checks temperature and MaxTokens plumbing. Zero
// values must leave the API defaults untouched.
func TestBuildParams_Sampling(t *testing.T) {
	p := &Provider{model: "gpt-4o"}

	params, err := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Temperature.Valid() {
		t.Errorf("expected unset Temperature, got %v", params.Temperature.Value)
	}
	if params.MaxCompletionTokens.Valid() {
		t.Errorf("expected unset MaxCompletionTokens, got %v", params.MaxCompletionTokens.Value)
	}

	params, err = p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "Hi"}},
		Temperature: 0.8,
		MaxTokens:   512,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0.8 {
		t.Errorf("expected Temperature 0.8, got %v", params.Temperature)
	}
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 512 {
		t.Errorf("expected MaxCompletionTokens 512, got %v", params.MaxCompletionTokens)
	}
}

// ── Capabilities ──────────────────────────────────────────────────────────────

// TestCapabilities checks the per-family limits table.
func TestCapabilities(t *testing.T) {
	tests := []struct {
		model     string
		window    int
		maxOutput int
	}{
		{"gpt-4o", 128_000, 16_384},
		{"gpt-4o-mini", 128_000, 16_384},
		{"gpt-4-turbo", 128_000, 4_096},
		{"gpt-4", 8_192, 4_096},
		{"gpt-3.5-turbo", 16_385, 4_096},
		{"o1-preview", 200_000, 100_000},
		{"my-custom-model", 128_000, 4_096},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p := &Provider{model: tt.model}
			caps := p.Capabilities()
			if caps.ContextWindow != tt.window {
				t.Errorf("ContextWindow = %d, want %d", caps.ContextWindow, tt.window)
			}
			if caps.MaxOutputTokens != tt.maxOutput {
				t.Errorf("MaxOutputTokens = %d, want %d", caps.MaxOutputTokens, tt.maxOutput)
			}
			if !caps.SupportsStreaming {
				t.Error("expected SupportsStreaming=true")
			}
		})
	}
}

// ── CountTokens ───────────────────────────────────────────────────────────────

// TestCountTokens_Empty checks that an empty message list counts zero tokens.
func TestCountTokens_Empty(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	count, err := p.CountTokens(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 tokens for empty messages, got %d", count)
	}
}

// TestCountTokens_Accumulates checks that more messages mean more tokens.
func TestCountTokens_Accumulates(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	msgs := []llm.Message{
		{Role: "user", Content: "I search the ruined shrine."},
		{Role: "assistant", Content: "Dust swirls as you lift the fallen beam."},
	}
	count, err := p.CountTokens(msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	single, _ := p.CountTokens(msgs[:1])
	if count <= single {
		t.Errorf("expected more tokens for two messages than one: %d <= %d", count, single)
	}
}

// ── classify ──────────────────────────────────────────────────────────────────

// TestClassify_ContextErrors checks that deadline expiry maps to the timeout kind.
func TestClassify_ContextErrors(t *testing.T) {
	if kind := classify(context.DeadlineExceeded); kind != llm.KindTimeout {
		t.Errorf("deadline: kind = %s, want timeout", kind)
	}
	if kind := classify(context.Canceled); kind != llm.KindTimeout {
		t.Errorf("cancel: kind = %s, want timeout", kind)
	}
}
