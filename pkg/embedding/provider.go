package embedding

import (
	"context"
	"math"
)

// Provider defines the interface for generating text embeddings. Backends
// must be deterministic for identical input so retrieval stays reproducible.
type Provider interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Normalize scales a vector to unit length. Cosine ranking tolerates
// unnormalized vectors, but normalized query vectors keep scores comparable
// across providers.
func Normalize(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
