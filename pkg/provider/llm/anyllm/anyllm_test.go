package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/questweaver/questweaver/pkg/provider/llm"
)

// ── Constructor ───────────────────────────────────────────────────────────────

// TestNew_EmptyProviderName checks that an empty provider name returns an error.
func TestNew_EmptyProviderName(t *testing.T) {
	_, err := New("", "gpt-4o")
	if err == nil {
		t.Fatal("expected error for empty providerName")
	}
}

// TestNew_EmptyModel checks that an empty model name returns an error.
func TestNew_EmptyModel(t *testing.T) {
	_, err := New("openai", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_UnsupportedProvider checks that an unsupported provider returns an error.
func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy"))
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

// TestNew_OpenAI_WithAPIKey checks that the OpenAI backend constructs with a key.
func TestNew_OpenAI_WithAPIKey(t *testing.T) {
	p, err := New("openai", "gpt-4o", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
	if p.model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %q", p.model)
	}
}

// TestNew_Ollama_NoAPIKey checks that Ollama works without an API key.
func TestNew_Ollama_NoAPIKey(t *testing.T) {
	p, err := New("ollama", "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}

// TestNew_CaseInsensitiveProviderName checks that provider names ignore case.
func TestNew_CaseInsensitiveProviderName(t *testing.T) {
	_, err := New("OLLAMA", "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_SystemPromptFirst checks that a system prompt becomes the
// leading system message.
func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are the narrator.",
		Messages:     []llm.Message{{Role: "user", Content: "I open the door."}},
	})

	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("expected leading system message, got role %q", params.Messages[0].Role)
	}
	if params.Messages[0].Content != "You are the narrator." {
		t.Errorf("unexpected system content: %q", params.Messages[0].Content)
	}
	if params.Messages[1].Content != "I open the door." {
		t.Errorf("unexpected user content: %q", params.Messages[1].Content)
	}
	if params.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %q", params.Model)
	}
}

// TestBuildParams_PreservesName checks that the per-message Name survives.
func TestBuildParams_PreservesName(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "Hi", Name: "rin"}},
	})
	if len(params.Messages) != 1 || params.Messages[0].Name != "rin" {
		t.Errorf("expected name rin, got %+v", params.Messages)
	}
}

// TestBuildParams_ZeroSamplingOmitted checks that zero temperature and
// MaxTokens leave the backend defaults in place.
func TestBuildParams_ZeroSamplingOmitted(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "Hi"}},
	})
	if params.Temperature != nil {
		t.Errorf("expected nil Temperature, got %v", *params.Temperature)
	}
	if params.MaxTokens != nil {
		t.Errorf("expected nil MaxTokens, got %v", *params.MaxTokens)
	}
}

// TestBuildParams_SamplingSet checks that non-zero sampling knobs are passed on.
func TestBuildParams_SamplingSet(t *testing.T) {
	p := &Provider{model: "gpt-4o"}
	params := p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "Hi"}},
		Temperature: 0.8,
		MaxTokens:   512,
	})
	if params.Temperature == nil || *params.Temperature != 0.8 {
		t.Errorf("expected Temperature 0.8, got %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 512 {
		t.Errorf("expected MaxTokens 512, got %v", params.MaxTokens)
	}
}

// ── modelCapabilities ─────────────────────────────────────────────────────────

// TestModelCapabilities checks the per-family limits table.
func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model     string
		window    int
		maxOutput int
	}{
		{"gpt-4o", 128_000, 16_384},
		{"gpt-4o-mini", 128_000, 16_384},
		{"o1-preview", 200_000, 100_000},
		{"o3-mini", 200_000, 100_000},
		{"claude-3-5-sonnet-latest", 200_000, 8_192},
		{"claude-future-model", 200_000, 8_192},
		{"gemini-1.5-pro", 2_097_152, 8_192},
		{"gemini-2.0-flash", 1_048_576, 8_192},
		{"my-custom-model", 128_000, 4_096},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			caps := modelCapabilities(tt.model)
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

// TestModelCapabilities_CaseInsensitive checks that model matching ignores case.
func TestModelCapabilities_CaseInsensitive(t *testing.T) {
	lower := modelCapabilities("claude-3-5-sonnet-latest")
	upper := modelCapabilities("CLAUDE-3-5-SONNET-LATEST")
	if lower.ContextWindow != upper.ContextWindow {
		t.Errorf("case should not matter: got %d vs %d", lower.ContextWindow, upper.ContextWindow)
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

// ── Capabilities ──────────────────────────────────────────────────────────────

// TestCapabilities_DelegatesToModel checks that Capabilities uses the
// configured model name.
func TestCapabilities_DelegatesToModel(t *testing.T) {
	p := &Provider{model: "claude-3-5-sonnet-latest"}
	caps := p.Capabilities()
	want := modelCapabilities("claude-3-5-sonnet-latest")
	if caps.ContextWindow != want.ContextWindow || caps.MaxOutputTokens != want.MaxOutputTokens {
		t.Errorf("Capabilities = %+v, want %+v", caps, want)
	}
}
