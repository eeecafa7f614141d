package retrieval

import (
	"encoding/json"
	"log"
	"math"
	"os"
	"sort"
)

// Fragment is one pre-embedded unit of documentation text. Fragments are
// created by an offline ingestion pipeline and loaded read-only at startup.
type Fragment struct {
	ID        string           `json:"id"`
	Content   string           `json:"content"`
	Edition   string           `json:"edition,omitempty"`
	Embedding []float32        `json:"embedding"`
	Metadata  FragmentMetadata `json:"metadata"`
}

// FragmentMetadata carries the manual position info used to prefix context blocks.
type FragmentMetadata struct {
	Title   string `json:"title,omitempty"`
	Page    string `json:"page,omitempty"`
	Chapter string `json:"chapter,omitempty"`
}

// Result holds the two independently ranked top-K slices for one query.
// General fragments ground answer generation, compatibility fragments ground
// the edition check. Not persisted; consumed immediately by the synthesizer.
type Result struct {
	General       []Fragment
	Compatibility []Fragment
}

// DefaultCompatibilityTopK bounds the compatibility slice. The edition check
// needs fewer, higher-precision snippets than answer grounding.
const DefaultCompatibilityTopK = 2

// Store holds the general manual collection and the compatibility-focused
// collection. Read-only after construction, safe to share across turns.
type Store struct {
	general           []Fragment
	compatibility     []Fragment
	compatibilityTopK int
}

// NewStore loads both collections from JSON files. A missing or unreadable
// file degrades to an empty collection so retrieval never fails a turn.
func NewStore(generalPath, compatibilityPath string) *Store {
	return &Store{
		general:           loadCollection(generalPath),
		compatibility:     loadCollection(compatibilityPath),
		compatibilityTopK: DefaultCompatibilityTopK,
	}
}

// NewStoreFromFragments builds a store from already-loaded fragments.
func NewStoreFromFragments(general, compatibility []Fragment) *Store {
	return &Store{
		general:           general,
		compatibility:     compatibility,
		compatibilityTopK: DefaultCompatibilityTopK,
	}
}

func loadCollection(path string) []Fragment {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[WARN] Retrieval collection %s not loaded: %v", path, err)
		return nil
	}
	var fragments []Fragment
	if err := json.Unmarshal(data, &fragments); err != nil {
		log.Printf("[WARN] Retrieval collection %s malformed: %v", path, err)
		return nil
	}
	log.Printf("[INFO] Loaded %d fragments from %s", len(fragments), path)
	return fragments
}

// GeneralSize reports the number of loaded general fragments.
func (s *Store) GeneralSize() int { return len(s.general) }

// CompatibilitySize reports the number of loaded compatibility fragments.
func (s *Store) CompatibilitySize() int { return len(s.compatibility) }

// Retrieve ranks both collections against the query vector and returns the
// top k general fragments plus the top compatibility fragments. The general
// collection is intentionally not partitioned by edition; edition only
// matters downstream for the compatibility verdict. Exact linear scan, no
// index: collections are small enough to brute-force and results stay
// deterministic.
func (s *Store) Retrieve(queryVec []float32, edition string, k int) Result {
	_ = edition
	return Result{
		General:       topMatches(s.general, queryVec, k),
		Compatibility: topMatches(s.compatibility, queryVec, s.compatibilityTopK),
	}
}

func topMatches(fragments []Fragment, queryVec []float32, k int) []Fragment {
	if k <= 0 || len(fragments) == 0 {
		return nil
	}

	type scored struct {
		fragment Fragment
		score    float64
	}
	ranked := make([]scored, len(fragments))
	for i, f := range fragments {
		ranked[i] = scored{fragment: f, score: CosineSimilarity(queryVec, f.Embedding)}
	}

	// Stable sort keeps load order on ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]Fragment, k)
	for i := 0; i < k; i++ {
		out[i] = ranked[i].fragment
	}
	return out
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths and zero-magnitude vectors score 0 rather than erroring.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}

	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
