package vision

import "context"

// Provider defines the contract for a vision-capable generation backend:
// prompt plus image in, free text (usually wrapping a JSON object) out.
// Callers extract the first balanced JSON object themselves; responses are
// not guaranteed to be pure JSON.
type Provider interface {
	Analyze(ctx context.Context, prompt string, image []byte) (string, error)
}
