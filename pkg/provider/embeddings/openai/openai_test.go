package openai

import "testing"

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New("", "text-embedding-3-small"); err == nil {
		t.Fatal("expected error for empty apiKey, got nil")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	t.Parallel()
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ModelID() != DefaultModel {
		t.Errorf("ModelID() = %q, want %q", p.ModelID(), DefaultModel)
	}
}

func TestModelDimensions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"some-future-model", 1536},
	}
	for _, tc := range cases {
		t.Run(tc.model, func(t *testing.T) {
			t.Parallel()
			if got := modelDimensions(tc.model); got != tc.want {
				t.Errorf("modelDimensions(%q) = %d, want %d", tc.model, got, tc.want)
			}
		})
	}
}

func TestDimensions_MatchesModel(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "text-embedding-3-large"}
	if got := p.Dimensions(); got != 3072 {
		t.Errorf("Dimensions() = %d, want 3072", got)
	}
}
