package retrieval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0},
		{"mismatched lengths", []float32{1, 2, 3}, []float32{1, 2}, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"empty vectors", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSimilaritySymmetricAndBounded(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3},
		{-4, 0.5, 2},
		{0.1, 0.1, 0.1},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			ab := CosineSimilarity(a, b)
			ba := CosineSimilarity(b, a)
			assert.InDelta(t, ab, ba, 1e-12, "similarity must be symmetric")
			assert.LessOrEqual(t, ab, 1.0+1e-12)
			assert.GreaterOrEqual(t, ab, -1.0-1e-12)
		}
	}
}

func newTestStore() *Store {
	general := []Fragment{
		{ID: "g1", Content: "audio effects", Embedding: []float32{1, 0, 0}},
		{ID: "g2", Content: "midi mapping", Embedding: []float32{0, 1, 0}},
		{ID: "g3", Content: "audio routing", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "g4", Content: "session view", Embedding: []float32{0, 0, 1}},
	}
	compat := []Fragment{
		{ID: "v1", Content: "Suite only feature", Embedding: []float32{1, 0, 0}},
		{ID: "v2", Content: "Intro limits", Embedding: []float32{0, 1, 0}},
		{ID: "v3", Content: "Standard limits", Embedding: []float32{0.5, 0.5, 0}},
	}
	return NewStoreFromFragments(general, compat)
}

func TestRetrieveOrderingAndBounds(t *testing.T) {
	store := newTestStore()
	result := store.Retrieve([]float32{1, 0, 0}, "Ableton Live Suite", 2)

	assert.Len(t, result.General, 2)
	assert.Equal(t, "g1", result.General[0].ID)
	assert.Equal(t, "g3", result.General[1].ID)

	// Compatibility slice is capped independently.
	assert.Len(t, result.Compatibility, DefaultCompatibilityTopK)
	assert.Equal(t, "v1", result.Compatibility[0].ID)

	// Scores are non-increasing.
	q := []float32{1, 0, 0}
	for i := 1; i < len(result.General); i++ {
		prev := CosineSimilarity(q, result.General[i-1].Embedding)
		cur := CosineSimilarity(q, result.General[i].Embedding)
		assert.GreaterOrEqual(t, prev, cur)
	}
}

func TestRetrieveTieBreakKeepsLoadOrder(t *testing.T) {
	general := []Fragment{
		{ID: "first", Embedding: []float32{1, 0}},
		{ID: "second", Embedding: []float32{1, 0}},
		{ID: "third", Embedding: []float32{1, 0}},
	}
	store := NewStoreFromFragments(general, nil)

	result := store.Retrieve([]float32{1, 0}, "", 3)
	assert.Equal(t, "first", result.General[0].ID)
	assert.Equal(t, "second", result.General[1].ID)
	assert.Equal(t, "third", result.General[2].ID)
}

func TestRetrieveKLargerThanCollection(t *testing.T) {
	store := newTestStore()
	result := store.Retrieve([]float32{1, 0, 0}, "", 50)
	assert.Len(t, result.General, 4)
}

func TestMissingCollectionFilesBehaveAsEmpty(t *testing.T) {
	store := NewStore("/nonexistent/general.json", "/nonexistent/versions.json")

	assert.Equal(t, 0, store.GeneralSize())
	assert.Equal(t, 0, store.CompatibilitySize())

	result := store.Retrieve([]float32{1, 0, 0}, "Ableton Live Intro", 5)
	assert.Empty(t, result.General)
	assert.Empty(t, result.Compatibility)
}

func TestRetrieveMismatchedQueryVectorScoresZero(t *testing.T) {
	store := newTestStore()
	// Query vector length differs from every fragment embedding; everything
	// scores 0 but retrieval still returns fragments in load order.
	result := store.Retrieve([]float32{1, 0}, "", 2)
	assert.Len(t, result.General, 2)
	assert.Equal(t, "g1", result.General[0].ID)
	assert.Equal(t, "g2", result.General[1].ID)
}
