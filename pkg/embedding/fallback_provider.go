package embedding

import (
	"context"
	"hash/fnv"
	"strings"
)

const fallbackDimensions = 3072

// FallbackProvider is a deterministic token-hash pseudo-embedding used when
// no real provider is configured. It carries no semantic signal; it exists so
// retrieval stays deterministic and the pipeline keeps running end to end.
type FallbackProvider struct{}

func NewFallbackProvider() *FallbackProvider {
	return &FallbackProvider{}
}

var _ Provider = &FallbackProvider{}

func (p *FallbackProvider) Generate(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, fallbackDimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[h.Sum32()%fallbackDimensions]++
	}
	return Normalize(vec), nil
}
