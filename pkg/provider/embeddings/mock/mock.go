// Package mock provides a test double for the embeddings.Provider interface.
//
// By default the mock derives a deterministic vector from the input text so
// similarity-ranking tests get distinct, repeatable vectors without canned
// fixtures. Set EmbedResult to force a fixed vector instead.
package mock

import (
	"context"
	"sync"

	"github.com/questweaver/questweaver/pkg/provider/embeddings"
)

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// EmbedResult, if non-nil, is returned verbatim by Embed and repeated for
	// each input by EmbedBatch. When nil, vectors are derived from the text.
	EmbedResult []float32

	// EmbedErr, if non-nil, is returned from Embed and EmbedBatch.
	EmbedErr error

	// DimensionsValue is returned by Dimensions. Defaults to 8 when zero.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// EmbedTexts records every text submitted to Embed or EmbedBatch, in order.
	EmbedTexts []string
}

var _ embeddings.Provider = (*Provider)(nil)

func (p *Provider) dims() int {
	if p.DimensionsValue > 0 {
		return p.DimensionsValue
	}
	return 8
}

// derive maps text onto a repeatable unit-free vector. Same text, same vector.
func (p *Provider) derive(text string) []float32 {
	vec := make([]float32, p.dims())
	for i, r := range text {
		vec[i%len(vec)] += float32(r%13) / 13
	}
	return vec
}

// Embed records the call and returns EmbedResult or a derived vector.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedTexts = append(p.EmbedTexts, text)
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	if p.EmbedResult != nil {
		return p.EmbedResult, nil
	}
	return p.derive(text), nil
}

// EmbedBatch records the calls and returns one vector per input text.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedTexts = append(p.EmbedTexts, texts...)
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		if p.EmbedResult != nil {
			result[i] = p.EmbedResult
		} else {
			result[i] = p.derive(text)
		}
	}
	return result, nil
}

// Dimensions returns DimensionsValue (default 8).
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dims()
}

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelIDValue
}

// Reset clears recorded texts.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedTexts = nil
}
